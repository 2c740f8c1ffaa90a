package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// callback data
const (
	cbExtract  = "extract"
	cbClear    = "clear"
	cbRetry    = "retry"
	cbNew      = "new"
	cbDownload = "download"
)

// Texts is the bot copy for one UI language.
type Texts struct {
	Welcome, Help        string
	ImageReceived        string
	AlbumReceived        string
	Extracting           string
	Busy, NeedImage      string
	Rejected             string // printf: reason
	NotImage             string
	Cleared, Reset       string
	ResultHeader         string
	ErrorHeader          string
	NoResult             string
	UnknownCommand       string
	BtnExtract, BtnClear string
	BtnRetry, BtnNew     string
	BtnDownload          string
}

var arabicTexts = Texts{
	Welcome:        "أرسل صورة ورقة الاختبار وسأعيد لك النص مع الحفاظ على التنسيق والترقيم.",
	Help:           "١. أرسل صورة الاختبار (أو عدة صفحات في ألبوم واحد).\n٢. اضغط «استخراج النص».\n٣. انسخ النص أو حمّله كملف.\n\n/reset للبدء من جديد.",
	ImageReceived:  "تم استلام الصورة. اضغط «استخراج النص» للبدء.",
	AlbumReceived:  "تم استلام الصفحات ودمجها في صورة واحدة.",
	Extracting:     "⏳ جاري استخراج النص...",
	Busy:           "الاستخراج جارٍ بالفعل، انتظر قليلاً.",
	NeedImage:      "أرسل صورة الاختبار أولاً.",
	Rejected:       "تعذّر قبول الصورة: %s",
	NotImage:       "الملف المرسل ليس صورة.",
	Cleared:        "تمت إزالة الصورة.",
	Reset:          "تم البدء من جديد. أرسل صورة جديدة.",
	ResultHeader:   "📝 النص المستخرج:",
	ErrorHeader:    "⚠️ عذراً، حدث خطأ:",
	NoResult:       "لا يوجد نص مستخرج بعد.",
	UnknownCommand: "أمر غير معروف. استخدم /help",
	BtnExtract:     "استخراج النص",
	BtnClear:       "إزالة الصورة",
	BtnRetry:       "إعادة المحاولة",
	BtnNew:         "البدء من جديد",
	BtnDownload:    "تحميل",
}

var englishTexts = Texts{
	Welcome:        "Send a photo of an exam sheet and I'll return its text with the layout kept.",
	Help:           "1. Send the exam photo (or several pages as one album).\n2. Press \"Extract text\".\n3. Copy the text or download it as a file.\n\n/reset to start over.",
	ImageReceived:  "Image received. Press \"Extract text\" to begin.",
	AlbumReceived:  "Pages received and stitched into one image.",
	Extracting:     "⏳ Extracting text...",
	Busy:           "Extraction is already running.",
	NeedImage:      "Send an exam photo first.",
	Rejected:       "Image rejected: %s",
	NotImage:       "That file is not an image.",
	Cleared:        "Image removed.",
	Reset:          "Started over. Send a new photo.",
	ResultHeader:   "📝 Extracted text:",
	ErrorHeader:    "⚠️ Sorry, something went wrong:",
	NoResult:       "No extracted text yet.",
	UnknownCommand: "Unknown command. Try /help",
	BtnExtract:     "Extract text",
	BtnClear:       "Remove image",
	BtnRetry:       "Retry",
	BtnNew:         "Start over",
	BtnDownload:    "Download",
}

func TextsFor(lang string) Texts {
	if lang == "en" {
		return englishTexts
	}
	return arabicTexts
}

func (t Texts) readyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(t.BtnExtract, cbExtract),
		tgbotapi.NewInlineKeyboardButtonData(t.BtnClear, cbClear),
	))
}

func (t Texts) resultKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(t.BtnDownload, cbDownload),
		tgbotapi.NewInlineKeyboardButtonData(t.BtnNew, cbNew),
	))
}

func (t Texts) failedKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(t.BtnRetry, cbRetry),
		tgbotapi.NewInlineKeyboardButtonData(t.BtnNew, cbNew),
	))
}
