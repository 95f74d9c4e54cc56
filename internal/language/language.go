package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	xlang "golang.org/x/text/language"
)

type entry struct {
	code    string // ISO 639-1
	english string
	native  string
	titles  map[string]string // role -> format with one %s for the player name
}

var supported = []entry{
	{
		code: "en", english: "English", native: "English",
		titles: map[string]string{
			"coach":   "Badminton Performance Analysis - %s",
			"student": "Your Badminton Training Report - %s",
			"parent":  "Badminton Progress Report - %s",
		},
	},
	{
		code: "hi", english: "Hindi", native: "हिंदी",
		titles: map[string]string{
			"coach":   "बैडमिंटन प्रदर्शन विश्लेषण - %s",
			"student": "आपकी बैडमिंटन प्रशिक्षण रिपोर्ट - %s",
			"parent":  "बैडमिंटन प्रगति रिपोर्ट - %s",
		},
	},
	{
		code: "ta", english: "Tamil", native: "தமிழ்",
		titles: map[string]string{
			"coach":   "பேட்மிண்டன் செயல்திறன் பகுப்பாய்வு - %s",
			"student": "உங்கள் பேட்மிண்டன் பயிற்சி அறிக்கை - %s",
			"parent":  "பேட்மிண்டன் முன்னேற்ற அறிக்கை - %s",
		},
	},
	{
		code: "te", english: "Telugu", native: "తెలుగు",
		titles: map[string]string{
			"coach":   "బ్యాడ్మింటన్ ప్రదర్శన విశ్లేషణ - %s",
			"student": "మీ బ్యాడ్మింటన్ శిక్షణ నివేదిక - %s",
			"parent":  "బ్యాడ్మింటన్ పురోగతి నివేదిక - %s",
		},
	},
	{
		code: "kn", english: "Kannada", native: "ಕನ್ನಡ",
		titles: map[string]string{
			"coach":   "ಬ್ಯಾಡ್ಮಿಂಟನ್ ಕಾರ್ಯಕ್ಷಮತೆ ವಿಶ್ಲೇಷಣೆ - %s",
			"student": "ನಿಮ್ಮ ಬ್ಯಾಡ್ಮಿಂಟನ್ ತರಬೇತಿ ವರದಿ - %s",
			"parent":  "ಬ್ಯಾಡ್ಮಿಂಟನ್ ಪ್ರಗತಿ ವರದಿ - %s",
		},
	},
}

var byCode map[string]*entry

func init() {
	byCode = make(map[string]*entry, len(supported))
	for i := range supported {
		byCode[supported[i].code] = &supported[i]
	}
}

// Default is the report language used when none is requested.
const Default = "en"

// Normalize maps a language code, tag, or English name ("Hindi", "hi-IN",
// "hin") to its supported two-letter code. The second result is false when
// the language has no report support.
func Normalize(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	lowered := strings.ToLower(value)
	for i := range supported {
		if strings.ToLower(supported[i].english) == lowered {
			return supported[i].code, true
		}
	}
	tag, err := xlang.Parse(value)
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	code := base.String()
	if _, ok := byCode[code]; !ok {
		return "", false
	}
	return code, true
}

// IsSupported reports whether code is one of the report languages.
func IsSupported(code string) bool {
	_, ok := byCode[strings.ToLower(strings.TrimSpace(code))]
	return ok
}

// Supported returns the supported language codes in display order.
func Supported() []string {
	codes := make([]string, 0, len(supported))
	for _, e := range supported {
		codes = append(codes, e.code)
	}
	return codes
}

// DisplayName renders a code as "native (English)", or just the English name
// for English. Unsupported codes are returned uppercased.
func DisplayName(code string) string {
	e, ok := byCode[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		if strings.TrimSpace(code) == "" {
			return "Unknown"
		}
		return strings.ToUpper(strings.TrimSpace(code))
	}
	if e.native == e.english {
		return e.english
	}
	return fmt.Sprintf("%s (%s)", e.native, e.english)
}

// EnglishName returns the English name of a supported language, used when
// instructing the generation model which language to write in.
func EnglishName(code string) string {
	if e, ok := byCode[strings.ToLower(strings.TrimSpace(code))]; ok {
		return e.english
	}
	return "English"
}

// Title returns the localized report title for a role and player label.
// Unknown languages fall back to English; unknown roles get a generic title.
func Title(code, role, player string) string {
	e, ok := byCode[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		e = byCode[Default]
	}
	format, ok := e.titles[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return "Badminton Report - " + player
	}
	return fmt.Sprintf(format, player)
}

// TitleCase capitalizes an identifier such as a role for display.
func TitleCase(value string) string {
	return cases.Title(xlang.Und).String(strings.TrimSpace(value))
}
