package dialog

import (
	"reflect"
	"testing"

	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/crm"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/session"
)

func TestDecideSystemAuthorIsPassive(t *testing.T) {
	inputs := []GateInput{
		{AuthorType: AuthorSystem},
		{AuthorType: AuthorSystem, RequestType: RequestOEM, DetectedTokens: []string{"4N0907998"}},
		{AuthorType: AuthorSystem, RequestType: RequestVIN, ManualStatus: true},
	}
	for _, in := range inputs {
		d := Decide(in)
		if d.ShouldReply || d.ShouldCallDownstream {
			t.Fatalf("system input must be passive, got %+v", d)
		}
		if d.WaitReason != WaitSystem {
			t.Fatalf("expected %q, got %q", WaitSystem, d.WaitReason)
		}
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	in := GateInput{
		AuthorType:     AuthorClient,
		RequestType:    RequestOEM,
		DetectedTokens: []string{"4N0907998", "8K0615301A"},
		Stage:          crm.StageNew,
	}
	if !reflect.DeepEqual(Decide(in), Decide(in)) {
		t.Fatalf("equal inputs must produce equal decisions")
	}
}

func TestDecideManualLockStaysSilent(t *testing.T) {
	// Manager speaking under a manual stage with no lead field filled.
	d := Decide(GateInput{AuthorType: AuthorManager, RequestType: RequestText, ManualStatus: true})
	if d.Mode != session.ModeManual || d.ShouldReply || d.ShouldCallDownstream {
		t.Fatalf("expected silent manual decision, got %+v", d)
	}
	if d.WaitReason != WaitOEMManual {
		t.Fatalf("expected %q, got %q", WaitOEMManual, d.WaitReason)
	}

	// A client resending a recognizable token while manual stays silent too:
	// the bot waits for the lead-side field, not chat text.
	d = Decide(GateInput{
		AuthorType:     AuthorClient,
		RequestType:    RequestOEM,
		SessionMode:    session.ModeManual,
		DetectedTokens: []string{"4N0907998"},
	})
	if d.Mode != session.ModeManual || d.ShouldCallDownstream {
		t.Fatalf("manual lock must win over tokens, got %+v", d)
	}
}

func TestDecideManualLockResumesOnFilledLeadField(t *testing.T) {
	d := Decide(GateInput{
		AuthorType:   AuthorClient,
		RequestType:  RequestText,
		SessionMode:  session.ModeManual,
		ManualStatus: true,
		LeadOEM:      "4N0907998",
	})
	if d.Mode != session.ModeAuto || !d.ShouldCallDownstream || !d.ShouldMoveStage {
		t.Fatalf("expected auto resume, got %+v", d)
	}
	if d.ReplyType != ReplyAutoStart {
		t.Fatalf("expected %q, got %q", ReplyAutoStart, d.ReplyType)
	}

	// The manager's own event must not resume the bot.
	d = Decide(GateInput{
		AuthorType:   AuthorManager,
		RequestType:  RequestText,
		ManualStatus: true,
		LeadOEM:      "4N0907998",
	})
	if d.Mode != session.ModeManual || d.ShouldCallDownstream {
		t.Fatalf("manager event must not resume auto mode, got %+v", d)
	}
}

func TestDecideEmptyInput(t *testing.T) {
	d := Decide(GateInput{AuthorType: AuthorClient, RequestType: RequestEmpty})
	if d.WaitReason != WaitEmpty || d.ShouldReply || d.ShouldCallDownstream {
		t.Fatalf("expected silent EMPTY decision, got %+v", d)
	}
}

func TestDecideVINAckOnce(t *testing.T) {
	d := Decide(GateInput{AuthorType: AuthorClient, RequestType: RequestVIN})
	if d.Mode != session.ModeManual || d.WaitReason != WaitVIN {
		t.Fatalf("expected manual VIN wait, got %+v", d)
	}
	if !d.ShouldReply || d.ReplyType != ReplyManualAck {
		t.Fatalf("first VIN must be acknowledged, got %+v", d)
	}
	if !d.ShouldMoveStage || d.ShouldCallDownstream {
		t.Fatalf("VIN moves stage without a downstream call, got %+v", d)
	}

	d = Decide(GateInput{AuthorType: AuthorClient, RequestType: RequestVIN, ManualAckSent: true})
	if d.ShouldReply {
		t.Fatalf("acknowledgement must be sent at most once, got %+v", d)
	}
}

func TestDecideComplexDistinguishesPhoto(t *testing.T) {
	d := Decide(GateInput{AuthorType: AuthorClient, RequestType: RequestComplex, HasImage: true})
	if d.WaitReason != WaitPhoto {
		t.Fatalf("expected %q, got %q", WaitPhoto, d.WaitReason)
	}
	d = Decide(GateInput{AuthorType: AuthorClient, RequestType: RequestComplex})
	if d.WaitReason != WaitComplex {
		t.Fatalf("expected %q, got %q", WaitComplex, d.WaitReason)
	}
}

func TestDecideTokensStartAutoProcessing(t *testing.T) {
	d := Decide(GateInput{
		AuthorType:     AuthorClient,
		RequestType:    RequestOEM,
		DetectedTokens: []string{"4N0907998"},
	})
	if d.Mode != session.ModeAuto || !d.ShouldCallDownstream || !d.ShouldMoveStage {
		t.Fatalf("expected auto start, got %+v", d)
	}
	if !d.ShouldWriteFieldToLead {
		t.Fatalf("single token with an empty lead field must be written, got %+v", d)
	}

	// Multiple candidates require disambiguation before any write.
	d = Decide(GateInput{
		AuthorType:     AuthorClient,
		RequestType:    RequestOEM,
		DetectedTokens: []string{"4N0907998", "8K0615301A"},
	})
	if d.ShouldWriteFieldToLead {
		t.Fatalf("multiple candidates must not be written, got %+v", d)
	}
	if len(d.FieldCandidates) != 2 {
		t.Fatalf("expected both candidates kept, got %v", d.FieldCandidates)
	}

	// An already-filled lead field is never overwritten.
	d = Decide(GateInput{
		AuthorType:     AuthorClient,
		RequestType:    RequestOEM,
		DetectedTokens: []string{"4N0907998"},
		LeadOEM:        "8K0615301A",
	})
	if d.ShouldWriteFieldToLead {
		t.Fatalf("filled lead field must not be overwritten, got %+v", d)
	}
}

func TestDecideDuplicateTokensCollapse(t *testing.T) {
	d := Decide(GateInput{
		AuthorType:     AuthorClient,
		RequestType:    RequestOEM,
		DetectedTokens: []string{"4N0907998", "4N0907998"},
	})
	if !d.ShouldWriteFieldToLead || len(d.FieldCandidates) != 1 {
		t.Fatalf("duplicates of one token still count as a single candidate, got %+v", d)
	}
}

func TestDecidePlainTextStageAllowList(t *testing.T) {
	allowed := []string{crm.StageNew, "", crm.StageContact, crm.StageAddress, crm.StageFinal, crm.StageABCPCreate}
	for _, stage := range allowed {
		d := Decide(GateInput{AuthorType: AuthorClient, RequestType: RequestText, Stage: stage})
		if !d.ShouldCallDownstream {
			t.Fatalf("stage %q must allow plain text, got %+v", stage, d)
		}
	}

	for _, stage := range []string{crm.StageInWork, crm.StageVinPick, crm.StagePricing} {
		d := Decide(GateInput{AuthorType: AuthorClient, RequestType: RequestText, Stage: stage})
		if d.ShouldCallDownstream {
			t.Fatalf("stage %q must block plain text, got %+v", stage, d)
		}
		if d.WaitReason != WaitNoTokenText {
			t.Fatalf("expected %q, got %q", WaitNoTokenText, d.WaitReason)
		}
	}
}

func TestDecidePricingStageNeedsOffersAndOfferReply(t *testing.T) {
	base := GateInput{AuthorType: AuthorClient, RequestType: RequestText, Stage: crm.StagePricing}

	in := base
	in.HasOffers = true
	in.OfferReplyLikely = true
	if d := Decide(in); !d.ShouldCallDownstream {
		t.Fatalf("offer reply with offers present must pass, got %+v", d)
	}

	in = base
	in.HasOffers = true
	if d := Decide(in); d.ShouldCallDownstream {
		t.Fatalf("non-offer text on pricing must stay silent, got %+v", d)
	}

	in = base
	in.OfferReplyLikely = true
	if d := Decide(in); d.ShouldCallDownstream {
		t.Fatalf("offer phrasing without offers must stay silent, got %+v", d)
	}
}

func TestRequestTypeDerivation(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		hasImage bool
		tokens   []string
		want     string
	}{
		{"empty", "   ", false, nil, RequestEmpty},
		{"image only", "", true, nil, RequestComplex},
		{"token", "нужен 4N0907998", false, []string{"4N0907998"}, RequestOEM},
		{"vin", "вин WAUZZZ4M0KD018683", false, nil, RequestVIN},
		{"vin plus token wins as token", "вин WAUZZZ4M0KD018683 и номер 4N0907998", false, []string{"4N0907998"}, RequestOEM},
		{"vin keyword without code", "могу скинуть вин номер", false, nil, RequestText},
		{"image with token", "фото и номер 4N0907998", true, []string{"4N0907998"}, RequestOEM},
		{"plain text", "здравствуйте, нужна фара", false, nil, RequestText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequestType(tt.text, tt.hasImage, tt.tokens); got != tt.want {
				t.Fatalf("RequestType(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestAuthorTypeDerivation(t *testing.T) {
	tests := []struct {
		name string
		msg  InboundMessage
		want string
	}{
		{"bot", InboundMessage{AuthorIsBot: true}, AuthorSystem},
		{"system-like", InboundMessage{SystemLike: true}, AuthorSystem},
		{"lines connector", InboundMessage{ChatEntity: "LINES", ViaConnector: true}, AuthorClient},
		{"lines internal", InboundMessage{ChatEntity: "LINES"}, AuthorManager},
		{"direct chat", InboundMessage{}, AuthorClient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AuthorType(tt.msg); got != tt.want {
				t.Fatalf("AuthorType = %q, want %q", got, tt.want)
			}
		})
	}
}
