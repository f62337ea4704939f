package signal

import (
	"regexp"
	"strings"
)

// Small-talk intents.
const (
	IntentOffTopic = "OFFTOPIC"
	IntentHowTo    = "HOWTO"
)

// SmallTalk is a resolved small-talk match with a canned reply.
type SmallTalk struct {
	Intent string
	Topic  string
	Reply  string
}

var (
	offTopicRe = regexp.MustCompile(`(?i)(погод|новост|политик|курс валют|анекдот|шутк|мем|кто ты|что ты умеешь|как дела|свободное время)`)
	// operational noise looks question-ish but belongs to an ongoing deal
	operationalNoiseRe = regexp.MustCompile(`(?i)(приняли решение|что делаем в итоге|перезакажите|по блоку раздатки)`)
	questionishRe      = regexp.MustCompile(`(?i)(\?|подскажите|можно( ли)?|как|где|когда|сколько|скольки|есть ли|есть информация|есть новости|скиньте|пришлите|уточните|сообщите)`)
	howToTopicHintRe   = regexp.MustCompile(`(?i)(заказ|оформ|оплат|достав|получ|подобр|возврат|гарант|статус|срок|сроки|цен|стоимост|сумм|денег|расч[её]т|перевод|карт|связ|созвон|телефон|адрес|самовывоз|реквизит|фото|видео|накладн|отправ|трек|идти|прид[её]т|график|время\s*работы|до\s*скольки|часы\s*работы|режим\s*работы|как\s+вы\s+работаете|работаете)`)

	normalizeSpaceRe = regexp.MustCompile(`\s+`)
	normalizeDropRe  = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

type topicPattern struct {
	topic string
	re    *regexp.Regexp
}

// Order matters: the first matching topic wins.
var topicPatterns = []topicPattern{
	{"CONTACTS", regexp.MustCompile(`(?i)(созвон|связат|позвон|телефон|номер\s+телеф|ваш\s+номер|контакт|whatsapp|ватсап|вацап|wats?app|telegram|тг|tg|менеджер)`)},
	{"ADDRESS", regexp.MustCompile(`(?i)(адрес|где вы|где находит|склад)`)},
	{"HOURS", regexp.MustCompile(`(?i)(время работы|график|до скольки|когда работает|как вы работаете|режим работы|выходн|работаете)`)},
	{"MEDIA", regexp.MustCompile(`(?i)(фото|видео|сним)`)},
	{"PAYMENT", regexp.MustCompile(`(?i)(оплат|предоплат|счет|сч[её]т|расч[её]т|карт|перевод|налич|реквизит|задаток|доплат|стоим|стоимост|цена|сумм|денег|сколько\s+.*(стоит|стоить|стоимост|к\s+оплат|денег|сумма))`)},
	{"DELIVERY", regexp.MustCompile(`(?i)(достав|получ|самовывоз|курьер|пвз|пункт выдач|сд[эе]к|обреш[её]тк|упаковк|страховк|накладн|трек|отправк|сколько\s+.*(идти|прид[её]т)|идти\b)`)},
	{"STATUS", regexp.MustCompile(`(?i)(статус|где заказ|по заказу|номер заказа|есть информация|есть новости|когда будет|когда отправ|отправили|передали|отслеж)`)},
	{"RETURN", regexp.MustCompile(`(?i)(возврат|вернут|гарант|брак|обмен)`)},
	{"ORDER", regexp.MustCompile(`(?i)(заказ|оформ|как купить|как заказат|подобр)`)},
}

const offTopicReply = "Я бот подбора автозапчастей, поэтому с этим не помогу. " +
	"Пришлите VIN автомобиля или номер детали (OEM), и я подберу запчасть."

const howToDefaultReply = "Подскажу по порядку работы: пришлите VIN автомобиля или номер детали (OEM), " +
	"я подберу варианты и передам заказ менеджеру."

var topicReplies = map[string]string{
	"CONTACTS": "Связаться с нами можно прямо в этом чате, менеджер подключится при необходимости. Для подбора пришлите VIN или номер детали.",
	"ADDRESS":  "Адрес склада и условия самовывоза уточнит менеджер после оформления. Для подбора пришлите VIN или номер детали.",
	"HOURS":    "Мы на связи ежедневно в рабочие часы, сообщения в чате обрабатываем по очереди. Пришлите VIN или номер детали, и я начну подбор.",
	"MEDIA":    "Фото и видео детали пришлёт менеджер после подбора. Чтобы начать, пришлите VIN или номер детали.",
	"PAYMENT":  "Оплата возможна картой или по счёту после подтверждения заказа менеджером. Для расчёта пришлите VIN или номер детали.",
	"DELIVERY": "Доставка по всей России транспортными компаниями, сроки и стоимость рассчитает менеджер. Для начала пришлите VIN или номер детали.",
	"STATUS":   "Проверяю статус по вашему запросу. Если заказ уже в работе, менеджер пришлёт обновление, как только оно появится.",
	"RETURN":   "По возврату и гарантии поможет менеджер, напишите номер заказа. Для нового подбора пришлите VIN или номер детали.",
	"ORDER":    "Оформить заказ просто: пришлите VIN автомобиля или номер детали (OEM), я подберу варианты и передам менеджеру.",
}

// NormalizeText lowercases the text and collapses it to letters, digits and
// single spaces. Used for dedup comparisons, never shown to the user.
func NormalizeText(text string) string {
	lowered := strings.ToLower(text)
	cleaned := normalizeDropRe.ReplaceAllString(lowered, " ")
	return strings.TrimSpace(normalizeSpaceRe.ReplaceAllString(cleaned, " "))
}

func detectHowToTopic(text string) string {
	for _, p := range topicPatterns {
		if p.re.MatchString(text) {
			return p.topic
		}
	}
	return ""
}

// ResolveSmallTalk classifies off-topic chatter and process ("how do I…")
// questions that deserve a canned reply instead of a downstream flow call.
// Returns nil when the message is not small talk.
func ResolveSmallTalk(text string) *SmallTalk {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil
	}

	if operationalNoiseRe.MatchString(raw) {
		return nil
	}

	if offTopicRe.MatchString(raw) {
		return &SmallTalk{Intent: IntentOffTopic, Reply: offTopicReply}
	}

	if questionishRe.MatchString(raw) && howToTopicHintRe.MatchString(raw) {
		topic := detectHowToTopic(raw)
		reply := howToDefaultReply
		if topic != "" {
			if r, ok := topicReplies[topic]; ok {
				reply = r
			}
		}
		return &SmallTalk{Intent: IntentHowTo, Topic: topic, Reply: reply}
	}

	return nil
}
