package challenge

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

// Kind classifies how a checkpoint wants to be resolved
type Kind string

const (
	KindEmail   Kind = "email"
	KindSMS     Kind = "sms"
	KindConsent Kind = "consent"
	KindCaptcha Kind = "captcha"
	KindUnknown Kind = "unknown"
)

// StepData carries the contact details a challenge step exposes
type StepData struct {
	Email        string `json:"email"`
	PhoneNumber  string `json:"phone_number"`
	ContactPoint string `json:"contact_point"`
	FormType     string `json:"form_type"`
}

// Info is the state of a challenge as reported by the server
type Info struct {
	StepName  string   `json:"step_name"`
	StepData  StepData `json:"step_data"`
	Context   string   `json:"challenge_context"`
	UserID    int64    `json:"user_id"`
	NonceCode string   `json:"nonce_code"`
}

// stepNamePatterns map step name substrings to kinds. Order matters:
// earlier entries win, so the specific names come before the generic ones.
var stepNamePatterns = []struct {
	substr string
	kind   Kind
}{
	{"verify_email", KindEmail},
	{"email", KindEmail},
	{"verify_code", KindEmail},
	{"phone_number", KindSMS},
	{"verify_phone", KindSMS},
	{"sms", KindSMS},
	{"consent", KindConsent},
	{"accept", KindConsent},
	{"delta_login_review", KindEmail},
	{"captcha", KindCaptcha},
}

// DetectKind classifies a challenge. The step name is checked first, then
// the step data contact fields, then the opaque challenge context.
func DetectKind(info *Info) Kind {
	if info == nil {
		return KindUnknown
	}

	stepName := strings.ToLower(info.StepName)
	if stepName != "" {
		for _, p := range stepNamePatterns {
			if strings.Contains(stepName, p.substr) {
				return p.kind
			}
		}
	}

	if info.StepData.Email != "" {
		return KindEmail
	}
	if info.StepData.PhoneNumber != "" {
		return KindSMS
	}
	if cp := info.StepData.ContactPoint; cp != "" {
		if strings.Contains(cp, "@") {
			return KindEmail
		}
		return KindSMS
	}

	ctx := strings.ToLower(info.Context)
	if strings.Contains(ctx, "email") {
		return KindEmail
	}
	if strings.Contains(ctx, "sms") || strings.Contains(ctx, "phone") {
		return KindSMS
	}

	return KindUnknown
}

// ContactPoint returns the masked contact the code was sent to, if any
func (i *Info) ContactPoint() string {
	if i.StepData.Email != "" {
		return i.StepData.Email
	}
	if i.StepData.PhoneNumber != "" {
		return i.StepData.PhoneNumber
	}
	return i.StepData.ContactPoint
}

// apiBase is where relative challenge URLs resolve
const apiBase = "https://i.instagram.com/api/v1"

// NormalizeURL turns a challenge URL, relative or absolute, into its
// canonical mobile API form. Equal challenges normalize to equal URLs.
func NormalizeURL(raw string) string {
	return normalizeAgainst(raw, apiBase)
}

func normalizeAgainst(raw, base string) string {
	if raw == "" {
		return ""
	}

	path := raw
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return raw
		}
		path = u.Path
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
	}

	path = strings.TrimPrefix(path, "/api/v1")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

var (
	htmlStepNameRe     = regexp.MustCompile(`"step_name"\s*:\s*"([^"]*)"`)
	htmlContactPointRe = regexp.MustCompile(`"contact_point"\s*:\s*"([^"]*)"`)
	htmlContextRe      = regexp.MustCompile(`"challenge_context"\s*:\s*"([^"]*)"`)
)

// ParseState decodes a challenge state response. JSON is preferred; HTML
// pages get scraped for the same fields.
func ParseState(body []byte) *Info {
	var payload struct {
		StepName  string          `json:"step_name"`
		StepData  StepData        `json:"step_data"`
		Context   json.RawMessage `json:"challenge_context"`
		UserID    int64           `json:"user_id"`
		NonceCode string          `json:"nonce_code"`
		Challenge *struct {
			StepName string   `json:"step_name"`
			StepData StepData `json:"step_data"`
		} `json:"challenge"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		info := &Info{
			StepName:  payload.StepName,
			StepData:  payload.StepData,
			UserID:    payload.UserID,
			NonceCode: payload.NonceCode,
		}
		// context may be a string or an embedded object
		var ctxStr string
		if json.Unmarshal(payload.Context, &ctxStr) == nil {
			info.Context = ctxStr
		} else {
			info.Context = string(payload.Context)
		}
		if payload.Challenge != nil && info.StepName == "" {
			info.StepName = payload.Challenge.StepName
			info.StepData = payload.Challenge.StepData
		}
		return info
	}

	info := &Info{}
	if m := htmlStepNameRe.FindSubmatch(body); m != nil {
		info.StepName = string(m[1])
	}
	if m := htmlContactPointRe.FindSubmatch(body); m != nil {
		info.StepData.ContactPoint = string(m[1])
	}
	if m := htmlContextRe.FindSubmatch(body); m != nil {
		info.Context = string(m[1])
	}
	return info
}
