package session

import (
	"regexp"
	"strings"
	"time"

	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/signal"
)

// Repeat-followup prompt types.
const (
	FollowupPing        = "FOLLOWUP_PING"
	FollowupStatusCheck = "STATUS_CHECK"
)

// followupMaxAge bounds how far back the previous client turn may be for a
// short ping to count as a repeat of it.
const followupMaxAge = 72 * time.Hour

var (
	followupPromptRe = regexp.MustCompile(`(?i)(ну что|что там|есть новости|какие новости|ап\b|up\b|подскажите|напом|когда будет|где заказ|статус|трек|накладн|жду ответ|когда ответ)`)
	statusQuestionRe = regexp.MustCompile(`(?i)(статус|где заказ|где мой заказ|трек|накладн|когда отправ|когда отправите|когда будет отправк|отслеж|отслеживать)`)
	serviceAckRe     = regexp.MustCompile(`(?i)(приветствуем|добро пожаловать|уже работает над запросом|даст ответ|отправил запрос дилеру|передаю менеджеру|передал менеджеру|принял запрос|в работе)`)
)

// Followup describes a detected repeat ping over an already-running request.
type Followup struct {
	PromptType            string
	PreviousClientText    string
	PreviousBotText       string
	PreviousBotServiceAck bool
	RepeatedSameText      bool
	GapTurns              int
}

func isFollowupPrompt(text string) bool {
	raw := strings.TrimSpace(text)
	if raw == "" || len([]rune(raw)) > 100 {
		return false
	}
	return followupPromptRe.MatchString(raw)
}

func isSubstantiveClientRequest(text string) bool {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return false
	}
	if len(signal.DetectTokens(raw)) > 0 {
		return true
	}
	if signal.IsVINLike(raw) {
		return true
	}
	return len([]rune(raw)) >= 18
}

func lastBotTurnAfter(history []Turn, fromIndex int) (Turn, bool) {
	for i := len(history) - 1; i > fromIndex; i-- {
		role := history[i].Role
		if role == RoleBot || role == RoleManager {
			return history[i], true
		}
	}
	return Turn{}, false
}

// DetectRepeatFollowup recognizes short "any news?" pings from the client
// that repeat an already-submitted request, so the orchestrator can answer
// contextually instead of starting a new downstream run. Returns nil when
// the message is not a repeat ping.
func (s *Session) DetectRepeatFollowup(text, authorRole string, hasImage bool, detectedTokens []string, now time.Time) *Followup {
	if authorRole != RoleClient {
		return nil
	}
	raw := strings.TrimSpace(text)
	if raw == "" || hasImage || len(detectedTokens) > 0 {
		return nil
	}
	if signal.IsVINLike(raw) || !isFollowupPrompt(raw) {
		return nil
	}

	prevClient, idx := s.LastTurnByRole(RoleClient)
	if idx < 0 || prevClient.Text == "" {
		return nil
	}
	if !prevClient.Ts.IsZero() && now.Sub(prevClient.Ts) > followupMaxAge {
		return nil
	}

	currentNorm := signal.NormalizeText(raw)
	sameAsPrev := currentNorm != "" && currentNorm == prevClient.TextNormalized

	prevBot, hasBot := lastBotTurnAfter(s.History, idx)
	botServiceAck := hasBot && serviceAckRe.MatchString(prevBot.Text)

	if !isSubstantiveClientRequest(prevClient.Text) && !botServiceAck && !sameAsPrev {
		return nil
	}

	promptType := FollowupPing
	if statusQuestionRe.MatchString(raw) {
		promptType = FollowupStatusCheck
	}

	return &Followup{
		PromptType:            promptType,
		PreviousClientText:    prevClient.Text,
		PreviousBotText:       prevBot.Text,
		PreviousBotServiceAck: botServiceAck,
		RepeatedSameText:      sameAsPrev,
		GapTurns:              len(s.History) - idx - 1,
	}
}

// inProgressStages are funnel stages where a request is already being worked.
var inProgressStages = map[string]bool{
	"IN_WORK":     true,
	"VIN_PICK":    true,
	"PRICING":     true,
	"CONTACT":     true,
	"ADDRESS":     true,
	"FINAL":       true,
	"ABCP_CREATE": true,
}

// RepeatFollowupReply builds the contextual reply for a detected repeat ping.
func (s *Session) RepeatFollowupReply(f *Followup) string {
	inProgress := inProgressStages[strings.ToUpper(s.State.Stage)] ||
		(f != nil && f.PreviousBotServiceAck)

	if f != nil && f.PromptType == FollowupStatusCheck && inProgress {
		return "Вижу ваше повторное сообщение. Запрос уже в работе, как только будет обновление по статусу, сразу напишу."
	}
	if inProgress {
		return "Вижу ваше повторное сообщение. Предыдущий запрос уже в работе, как только будет обновление, сразу напишу."
	}
	return "Вижу ваше повторное обращение. Проверяю историю диалога и вернусь с ответом."
}
