package ocr

import "strings"

// Outcome is the result of one extraction attempt. Either Succeeded with non-empty Text, or
// failed with a Reason; never both.
type Outcome struct {
	Succeeded bool   `json:"success"`
	Text      string `json:"text,omitempty"`
	Reason    string `json:"error,omitempty"`
}

func Success(text string) Outcome { return Outcome{Succeeded: true, Text: text} }

func Failure(reason string) Outcome { return Outcome{Reason: reason} }

// Valid reports whether exactly one of the two shapes holds.
func (o Outcome) Valid() bool {
	if o.Succeeded {
		return strings.TrimSpace(o.Text) != "" && o.Reason == ""
	}
	return o.Text == "" && strings.TrimSpace(o.Reason) != ""
}

// Messages are the user-facing failure texts.
type Messages struct {
	NoText  string
	Generic string
	// Failed is shown when a failure arrives without any reason.
	Failed string
}

var (
	Arabic = Messages{
		NoText:  "لم يتم العثور على نص في الصورة.",
		Generic: "حدث خطأ أثناء معالجة الصورة. يرجى المحاولة مرة أخرى.",
		Failed:  "فشل استخراج النص.",
	}
	English = Messages{
		NoText:  "No text found in the image.",
		Generic: "An error occurred while processing the image. Please try again.",
		Failed:  "Text extraction failed.",
	}
)

// MessagesFor picks the message set for a UI language code; Arabic is the default.
func MessagesFor(lang string) Messages {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "en", "en-us", "en-gb", "english":
		return English
	default:
		return Arabic
	}
}
