package validation

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nijaru/yt-chat/errors"
)

const (
	MaxQuestionLength = 1000
	maxURLLength      = 2048
)

var (
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

	youtubeHosts = map[string]bool{
		"youtube.com":       true,
		"www.youtube.com":   true,
		"m.youtube.com":     true,
		"music.youtube.com": true,
		"youtu.be":          true,
		"www.youtu.be":      true,
	}
)

// ValidateYouTubeURL checks that rawURL is an http(s) URL on a YouTube host.
func ValidateYouTubeURL(rawURL string) error {
	const op = "validation.ValidateYouTubeURL"

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return errors.InvalidInput(op, nil, "URL is required")
	}
	if len(rawURL) > maxURLLength {
		return errors.InvalidInput(op, nil, "URL is too long")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.InvalidInput(op, err, "Invalid URL format")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.InvalidInput(op, nil, "URL must use HTTP or HTTPS")
	}
	if !youtubeHosts[strings.ToLower(parsedURL.Hostname())] {
		return errors.InvalidInput(op, nil, "Only YouTube URLs are supported")
	}

	return nil
}

// ExtractVideoID accepts a bare 11-character video ID or any of the common
// YouTube URL shapes (watch, youtu.be, embed, shorts, live, v) and returns
// the video ID.
func ExtractVideoID(input string) (string, error) {
	const op = "validation.ExtractVideoID"

	input = strings.TrimSpace(input)
	if videoIDPattern.MatchString(input) {
		return input, nil
	}

	if !strings.Contains(input, "://") && (strings.HasPrefix(input, "youtu") || strings.HasPrefix(input, "www.") || strings.HasPrefix(input, "m.")) {
		input = "https://" + input
	}
	if err := ValidateYouTubeURL(input); err != nil {
		return "", err
	}

	parsedURL, _ := url.Parse(input)
	host := strings.ToLower(parsedURL.Hostname())
	segments := strings.Split(strings.Trim(parsedURL.Path, "/"), "/")

	var candidate string
	switch {
	case strings.HasSuffix(host, "youtu.be"):
		candidate = segments[0]
	case parsedURL.Query().Get("v") != "":
		candidate = parsedURL.Query().Get("v")
	case len(segments) >= 2:
		switch segments[0] {
		case "embed", "shorts", "live", "v":
			candidate = segments[1]
		}
	}

	if !videoIDPattern.MatchString(candidate) {
		return "", errors.InvalidInput(op, nil, "Could not find a video ID in the URL")
	}
	return candidate, nil
}

// ValidateQuestion trims the question and rejects empty or oversized input.
func ValidateQuestion(question string) (string, error) {
	const op = "validation.ValidateQuestion"

	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.InvalidInput(op, nil, "Question is required")
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return "", errors.InvalidInput(op, nil, "Question is too long")
	}
	return question, nil
}

// ValidateLanguage accepts a language name or code made of at least two
// letters, allowing spaces and hyphens ("es", "pt-BR", "Hindi").
func ValidateLanguage(language string) (string, error) {
	const op = "validation.ValidateLanguage"

	language = strings.TrimSpace(language)
	letters := 0
	for _, r := range language {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == ' ' || r == '-':
		default:
			return "", errors.InvalidInput(op, nil, "Language may only contain letters")
		}
	}
	if letters < 2 || utf8.RuneCountInString(language) > 40 {
		return "", errors.InvalidInput(op, nil, "Please name a language, e.g. Spanish or hi")
	}
	return language, nil
}
