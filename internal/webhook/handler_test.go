package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/disposition"
	"whatsapp-assistant/internal/whatsapp"

	"github.com/gin-gonic/gin"
)

type fakeProcessor struct {
	inbound  []disposition.InboundEvent
	statuses [][2]string
	err      error
}

func (f *fakeProcessor) HandleInbound(_ context.Context, ev disposition.InboundEvent) (*disposition.InboundResult, error) {
	f.inbound = append(f.inbound, ev)
	if f.err != nil {
		return nil, f.err
	}
	if ev.From == "" {
		return nil, disposition.ErrMissingSender
	}
	return &disposition.InboundResult{MessageID: "m1", Type: disposition.Classify(ev), Scheduled: true}, nil
}

func (f *fakeProcessor) HandleStatus(_ context.Context, id, status string) bool {
	f.statuses = append(f.statuses, [2]string{id, status})
	return false
}

func setup(cfg *config.Config, p *fakeProcessor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", NewHandler(cfg, p).HandleMessage)
	return r
}

func post(r *gin.Engine, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInboundMessage(t *testing.T) {
	p := &fakeProcessor{}
	r := setup(&config.Config{}, p)

	w := post(r, url.Values{
		"MessageSid":    {"SMin1"},
		"From":          {"whatsapp:+254712345678"},
		"To":            {"whatsapp:+14155238886"},
		"Body":          {"hello"},
		"ProfileName":   {"Amina"},
		"NumMedia":      {"0"},
		"ButtonPayload": {"yes_received"},
	}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if len(p.inbound) != 1 {
		t.Fatalf("inbound calls = %d", len(p.inbound))
	}
	ev := p.inbound[0]
	if ev.ProviderMessageID != "SMin1" || ev.From != "whatsapp:+254712345678" || ev.ProfileName != "Amina" || ev.ButtonPayload != "yes_received" {
		t.Errorf("event = %+v", ev)
	}

	var body struct {
		Status string
		Result disposition.InboundResult
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Status != "ok" || body.Result.MessageID != "m1" {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestMissingSender(t *testing.T) {
	r := setup(&config.Config{}, &fakeProcessor{})
	w := post(r, url.Values{"MessageSid": {"SM1"}, "Body": {"hi"}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestInternalFailure(t *testing.T) {
	r := setup(&config.Config{}, &fakeProcessor{err: errors.New("db locked")})
	w := post(r, url.Values{"From": {"whatsapp:+254712345678"}, "Body": {"hi"}}, nil)
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "db locked") {
		t.Errorf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestStatusCallbackAlwaysSucceeds(t *testing.T) {
	p := &fakeProcessor{}
	r := setup(&config.Config{}, p)
	w := post(r, url.Values{"MessageSid": {"SM-unknown"}, "MessageStatus": {"undelivered"}, "From": {"whatsapp:+14155238886"}}, nil)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if len(p.inbound) != 0 || len(p.statuses) != 1 || p.statuses[0] != [2]string{"SM-unknown", "undelivered"} {
		t.Errorf("inbound = %v statuses = %v", p.inbound, p.statuses)
	}
}

func TestSignatureValidation(t *testing.T) {
	cfg := &config.Config{ValidateSignature: true, TwilioAuthToken: "secret", WebhookURL: "https://example.com/webhook"}
	p := &fakeProcessor{}
	r := setup(cfg, p)
	form := url.Values{"MessageSid": {"SM1"}, "From": {"whatsapp:+254712345678"}, "Body": {"hi"}}

	if w := post(r, form, map[string]string{whatsapp.SignatureHeader: "bogus"}); w.Code != http.StatusForbidden {
		t.Errorf("bad signature status = %d", w.Code)
	}

	sig := whatsapp.Signature("secret", cfg.WebhookURL, form)
	if w := post(r, form, map[string]string{whatsapp.SignatureHeader: sig}); w.Code != http.StatusOK {
		t.Errorf("good signature status = %d body = %s", w.Code, w.Body.String())
	}
	if len(p.inbound) != 1 {
		t.Errorf("inbound calls = %d", len(p.inbound))
	}
}
