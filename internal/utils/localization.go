package contextutils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Locale represents an assessment language (e.g., "en", "id")
type Locale string

const (
	// LocaleEnglish represents English language
	LocaleEnglish Locale = "en"
	// LocaleIndonesian represents Indonesian language
	LocaleIndonesian Locale = "id"
)

// SupportedLocale reports whether generation output can be requested in the locale.
func SupportedLocale(l Locale) bool {
	return l == LocaleEnglish || l == LocaleIndonesian
}

// LocalizedMessages contains localized error messages for different locales
type LocalizedMessages struct {
	messages map[ErrorCode]map[Locale]string
}

// NewLocalizedMessages creates a new instance of localized messages
func NewLocalizedMessages() *LocalizedMessages {
	return &LocalizedMessages{
		messages: make(map[ErrorCode]map[Locale]string),
	}
}

// AddMessage adds a localized message for a specific error code and locale
func (lm *LocalizedMessages) AddMessage(code ErrorCode, locale Locale, message string) {
	if lm.messages[code] == nil {
		lm.messages[code] = make(map[Locale]string)
	}
	lm.messages[code][locale] = message
}

// GetMessage returns the localized message for an error code and locale
func (lm *LocalizedMessages) GetMessage(code ErrorCode, locale Locale) string {
	if localeMessages, exists := lm.messages[code]; exists {
		if message, exists := localeMessages[locale]; exists {
			return message
		}
		if message, exists := localeMessages[LocaleEnglish]; exists {
			return message
		}
	}
	return getDefaultMessage(code)
}

// GetMessageWithDetails returns a localized message with additional details
func (lm *LocalizedMessages) GetMessageWithDetails(code ErrorCode, locale Locale, details string) string {
	message := lm.GetMessage(code, locale)
	if details != "" {
		return fmt.Sprintf("%s: %s", message, details)
	}
	return message
}

// getDefaultMessage returns a default English message for error codes
func getDefaultMessage(code ErrorCode) string {
	switch code {
	case ErrorCodeDatabaseConnection:
		return "Database connection failed"
	case ErrorCodeDatabaseQuery:
		return "Database query failed"
	case ErrorCodeRecordNotFound:
		return "Record not found"
	case ErrorCodeInvalidInput:
		return "Invalid input"
	case ErrorCodeMissingRequired:
		return "Missing required field"
	case ErrorCodeValidationFailed:
		return "Validation failed"
	case ErrorCodeServiceUnavailable:
		return "Service temporarily unavailable"
	case ErrorCodeTimeout:
		return "Request timeout"
	case ErrorCodeInternalError:
		return "Internal server error"
	case ErrorCodeAIProviderUnavailable:
		return "AI service unavailable"
	case ErrorCodeAIRequestFailed:
		return "AI request failed"
	case ErrorCodeAIResponseInvalid:
		return "AI response invalid"
	case ErrorCodeAIResponseShapeMismatch:
		return "AI response has an unexpected shape"
	case ErrorCodeAIResponseParseFailed:
		return "AI response could not be parsed"
	case ErrorCodeAIConfigInvalid:
		return "AI configuration invalid"
	default:
		return "An error occurred"
	}
}

// LoadMessagesFromJSON loads localized messages from a JSON structure
func (lm *LocalizedMessages) LoadMessagesFromJSON(jsonData string) error {
	var data map[string]map[string]string
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return WrapError(err, "failed to parse localization JSON")
	}

	for codeStr, localeMessages := range data {
		code := ErrorCode(codeStr)
		for localeStr, message := range localeMessages {
			lm.AddMessage(code, Locale(localeStr), message)
		}
	}

	return nil
}

// ParseLocale parses a locale string (e.g., "en-US", "id-ID") and returns the language part.
// Unsupported languages fall back to English.
func ParseLocale(localeStr string) Locale {
	parts := strings.Split(strings.TrimSpace(localeStr), "-")
	if len(parts) > 0 && parts[0] != "" {
		l := Locale(strings.ToLower(parts[0]))
		if SupportedLocale(l) {
			return l
		}
	}
	return LocaleEnglish
}

// Global instance of localized messages
var globalLocalizedMessages = NewLocalizedMessages()

func init() {
	globalLocalizedMessages.AddMessage(ErrorCodeInvalidInput, LocaleIndonesian, "Input tidak valid")
	globalLocalizedMessages.AddMessage(ErrorCodeMissingRequired, LocaleIndonesian, "Kolom wajib tidak diisi")
	globalLocalizedMessages.AddMessage(ErrorCodeValidationFailed, LocaleIndonesian, "Validasi gagal")
	globalLocalizedMessages.AddMessage(ErrorCodeTimeout, LocaleIndonesian, "Permintaan melebihi batas waktu")
	globalLocalizedMessages.AddMessage(ErrorCodeInternalError, LocaleIndonesian, "Kesalahan internal server")
	globalLocalizedMessages.AddMessage(ErrorCodeAIRequestFailed, LocaleIndonesian, "Permintaan AI gagal")
	globalLocalizedMessages.AddMessage(ErrorCodeAIProviderUnavailable, LocaleIndonesian, "Layanan AI tidak tersedia")
}

// GetLocalizedMessage returns a localized error message using the global instance
func GetLocalizedMessage(code ErrorCode, locale Locale) string {
	return globalLocalizedMessages.GetMessage(code, locale)
}

// GetLocalizedMessageWithDetails returns a localized error message with details
func GetLocalizedMessageWithDetails(code ErrorCode, locale Locale, details string) string {
	return globalLocalizedMessages.GetMessageWithDetails(code, locale, details)
}

// FallbackKey identifies a fixed piece of generated content used when a model call
// could not produce it.
type FallbackKey string

const (
	// FallbackModelAnswerTimeout replaces a model answer whose generation timed out
	FallbackModelAnswerTimeout FallbackKey = "model_answer_timeout"
	// FallbackCriteriaTimeout describes marking criteria whose generation timed out
	FallbackCriteriaTimeout FallbackKey = "criteria_timeout"
	// FallbackQuestionUnavailable marks a question slot that could not be generated
	FallbackQuestionUnavailable FallbackKey = "question_unavailable"
	// FallbackAnswerUnavailable marks an answer that could not be generated
	FallbackAnswerUnavailable FallbackKey = "answer_unavailable"
	// FallbackDescription is the generic assessment description
	FallbackDescription FallbackKey = "assessment_description"
	// FallbackProjectDescription is the generic project brief
	FallbackProjectDescription FallbackKey = "project_description"
)

var fallbackTexts = map[FallbackKey]map[Locale]string{
	FallbackModelAnswerTimeout: {
		LocaleEnglish:    "Model answer unavailable due to timeout.",
		LocaleIndonesian: "Jawaban model tidak tersedia karena batas waktu habis.",
	},
	FallbackCriteriaTimeout: {
		LocaleEnglish:    "Marking criteria unavailable due to timeout.",
		LocaleIndonesian: "Kriteria penilaian tidak tersedia karena batas waktu habis.",
	},
	FallbackQuestionUnavailable: {
		LocaleEnglish:    "Unable to generate question %d. Please write this question manually.",
		LocaleIndonesian: "Tidak dapat membuat soal %d. Silakan tulis soal ini secara manual.",
	},
	FallbackAnswerUnavailable: {
		LocaleEnglish:    "Unable to generate a model answer for this question.",
		LocaleIndonesian: "Tidak dapat membuat jawaban model untuk soal ini.",
	},
	FallbackDescription: {
		LocaleEnglish:    "This %s assesses understanding of the course material.",
		LocaleIndonesian: "%s ini menilai pemahaman terhadap materi perkuliahan.",
	},
	FallbackProjectDescription: {
		LocaleEnglish:    "Design and deliver a project that applies the main concepts of the course material. Submit a written report and present your results.",
		LocaleIndonesian: "Rancang dan selesaikan sebuah proyek yang menerapkan konsep utama dari materi perkuliahan. Kumpulkan laporan tertulis dan presentasikan hasil Anda.",
	},
}

// FallbackText returns the localized fallback text for key, formatted with args.
func FallbackText(key FallbackKey, locale Locale, args ...interface{}) string {
	texts, ok := fallbackTexts[key]
	if !ok {
		return ""
	}
	text, ok := texts[locale]
	if !ok {
		text = texts[LocaleEnglish]
	}
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}
