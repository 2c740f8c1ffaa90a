package web

// Labels is the page copy for one UI language.
type Labels struct {
	Lang, Dir                string
	Title, Tagline           string
	UploadTitle, UploadHint  string
	Choose, Upload, Clear    string
	Extract, Extracting      string
	ProgressTitle, Progress  string
	ResultTitle, Footer      string
	Copy, Copied, Download   string
	ErrorTitle, Retry, Reset string
	EmptyTitle, EmptyHint    string
}

var arabic = Labels{
	Lang:          "ar",
	Dir:           "rtl",
	Title:         "استخراج نصوص الاختبارات",
	Tagline:       "حول صور اختباراتك إلى نصوص بلمحة بصر",
	UploadTitle:   "ارفع صورة نموذج الاختبار",
	UploadHint:    "يدعم صور الجوال والمسح الضوئي",
	Choose:        "اختر صورة",
	Upload:        "رفع",
	Clear:         "إزالة الصورة",
	Extract:       "استخراج النص الآن",
	Extracting:    "جاري التحليل بدقة...",
	ProgressTitle: "جاري استخراج البيانات...",
	Progress:      "نقوم الآن بتحليل هيكلية الاختبار وتنسيق الفقرات لضمان نتيجة مطابقة للأصل.",
	ResultTitle:   "النص المستخرج",
	Footer:        "تم الحفاظ على التنسيق والفقرات بدقة عالية. يمكنك استخدامه في الوورد أو ملفات PDF.",
	Copy:          "نسخ النص",
	Copied:        "تم النسخ",
	Download:      "تحميل",
	ErrorTitle:    "عذراً، حدث خطأ",
	Retry:         "إعادة المحاولة",
	Reset:         "البدء من جديد",
	EmptyTitle:    "ستظهر النتائج هنا",
	EmptyHint:     "قم برفع صورة الاختبار واضغط على زر \"استخراج النص\" للبدء",
}

var english = Labels{
	Lang:          "en",
	Dir:           "ltr",
	Title:         "Exam text extraction",
	Tagline:       "Turn exam photos into text in a blink",
	UploadTitle:   "Upload a photo of the exam sheet",
	UploadHint:    "Phone photos and scans are supported",
	Choose:        "Choose image",
	Upload:        "Upload",
	Clear:         "Remove image",
	Extract:       "Extract text now",
	Extracting:    "Analyzing...",
	ProgressTitle: "Extracting...",
	Progress:      "Analyzing the exam structure and paragraph layout.",
	ResultTitle:   "Extracted text",
	Footer:        "Layout and paragraphs were preserved. Paste it into Word or a PDF.",
	Copy:          "Copy text",
	Copied:        "Copied",
	Download:      "Download",
	ErrorTitle:    "Sorry, something went wrong",
	Retry:         "Retry",
	Reset:         "Start over",
	EmptyTitle:    "Results will appear here",
	EmptyHint:     "Upload an exam photo and press \"Extract text\" to begin",
}

func LabelsFor(lang string) Labels {
	if lang == "en" {
		return english
	}
	return arabic
}
