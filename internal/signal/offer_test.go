package signal

import "testing"

func TestLooksLikeOfferReply(t *testing.T) {
	for _, text := range []string{
		"беру первый",
		"2",
		"подходит оригинал",
		"дорого, есть дешевле?",
		"давайте аналог",
	} {
		if !LooksLikeOfferReply(text) {
			t.Fatalf("expected offer reply for %q", text)
		}
	}

	for _, text := range []string{
		"",
		"нужна фара на Audi Q5",
		"вин WAUZZZ4M0KD018683",
		"когда будет ответ по подбору, уже несколько дней жду, хотелось бы понимать сроки, и еще интересует доставка в регионы, упаковка, обрешетка, страховка и все остальные детали отправки",
	} {
		if LooksLikeOfferReply(text) {
			t.Fatalf("did not expect offer reply for %q", text)
		}
	}
}
