package campaign

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/email.md
var emailPromptRaw string

var emailPromptTmpl = template.Must(template.New("email").Parse(emailPromptRaw))

const DefaultSubject = "Earthquake Coverage Information"

// ComplianceFooter is appended to every generated body.
const ComplianceFooter = `

Best regards,
Insurance Protection Team
123 Insurance Street, Your City, State 12345

To schedule a consultation: Reply to this email
To unsubscribe: Reply with "UNSUBSCRIBE"

This email was sent because you own property in an area affected by recent seismic activity.`

// GenerateEmail drafts outreach copy for the selected target and stores it
// as the session draft. Calling it again regenerates the draft.
func (u *UseCase) GenerateEmail(ctx context.Context, s *Session, campaignContext string) (*model.EmailDraft, error) {
	target := s.Selected
	if target == nil || target.Person == nil || target.Earthquake == nil {
		return nil, goerr.Wrap(ErrNoTarget, "select a target before generating an email")
	}
	if u.gemini == nil {
		return nil, goerr.Wrap(ErrNotConfig, "gemini is not configured")
	}

	reasons, err := u.policy.Deny(ctx, target, campaignContext)
	if err != nil {
		return nil, err
	}
	if len(reasons) > 0 {
		return nil, goerr.Wrap(ErrDenied, "outreach policy blocks this target",
			goerr.V("person_id", target.Person.PersonID),
			goerr.V("reasons", reasons))
	}

	prompt, err := buildEmailPrompt(target, campaignContext)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := u.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate email", goerr.V("person_id", target.Person.PersonID))
	}

	text := responseText(resp)
	if text == "" {
		return nil, goerr.New("empty response from gemini", goerr.V("person_id", target.Person.PersonID))
	}

	subject, body, structured := parseEmail(text)
	if !structured {
		logging.From(ctx).Warn("email response is not JSON, using plain text",
			"person_id", target.Person.PersonID)
	}

	draft := &model.EmailDraft{
		Subject:     subject,
		Body:        body + ComplianceFooter,
		Structured:  structured,
		Target:      target,
		GeneratedAt: u.now(),
	}
	s.CampaignContext = campaignContext
	s.Draft = draft
	return draft, nil
}

func buildEmailPrompt(t *model.Target, campaignContext string) (string, error) {
	var buf bytes.Buffer
	if err := emailPromptTmpl.Execute(&buf, map[string]any{
		"Magnitude":       strconv.FormatFloat(t.Earthquake.Magnitude, 'f', 1, 64),
		"Place":           t.Earthquake.Place,
		"DistanceKm":      strconv.FormatFloat(t.DistanceKm, 'f', 2, 64),
		"City":            t.Person.City,
		"State":           t.Person.State,
		"HouseValue":      humanize.Comma(int64(math.Round(t.Person.HouseValue))),
		"Insured":         t.Person.HasInsurance,
		"RiskLevel":       t.RiskLevel,
		"CampaignContext": strings.TrimSpace(campaignContext),
		"FirstName":       t.Person.FirstName,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute email prompt template")
	}
	return buf.String(), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			parts = append(parts, part.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}

// stripFence returns the contents of the first markdown code fence, or text
// unchanged when it has none.
func stripFence(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}
	rest := text[start+3:]
	rest = strings.TrimPrefix(rest, "json")
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// parseEmail extracts subject and body. When the text is not the requested
// JSON object the whole text becomes the body and a "Subject:" line, if
// present, the subject.
func parseEmail(text string) (subject, body string, structured bool) {
	var email struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal([]byte(stripFence(text)), &email); err == nil && email.Body != "" {
		subject = strings.TrimSpace(email.Subject)
		if subject == "" {
			subject = DefaultSubject
		}
		return subject, email.Body, true
	}

	subject = DefaultSubject
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) >= 8 && strings.EqualFold(line[:8], "subject:") {
			if s := strings.TrimSpace(line[8:]); s != "" {
				subject = s
			}
			break
		}
	}
	return subject, text, false
}
