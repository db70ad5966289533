package utils

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// PublicUrl joins path onto BASE_URL, or onto http://localhost:<serverPort>
// when BASE_URL is not set.
func PublicUrl(serverPort int, path string) (string, error) {
	if baseUrl := os.Getenv("BASE_URL"); baseUrl != "" {
		parsedUrl, err := url.Parse(baseUrl)
		if err != nil {
			return "", fmt.Errorf("invalid BASE_URL env var: %w", err)
		}
		if parsedUrl.Scheme == "" || parsedUrl.Host == "" {
			return "", fmt.Errorf("invalid BASE_URL env var: %q is not absolute", baseUrl)
		}
		parsedUrl.Path = strings.TrimSuffix(parsedUrl.Path, "/") + "/" + strings.TrimPrefix(path, "/")
		return parsedUrl.String(), nil
	}

	return fmt.Sprintf("http://localhost:%d/%s", serverPort, strings.TrimPrefix(path, "/")), nil
}

// GetSubmissionUrl links to a submission in the web app
func GetSubmissionUrl(serverPort int, submissionID uint) (string, error) {
	return PublicUrl(serverPort, fmt.Sprintf("submissions/%d", submissionID))
}

// GetSigningReturnUrl is where the e-signature provider sends signers back to
func GetSigningReturnUrl(serverPort int) (string, error) {
	return PublicUrl(serverPort, "documents/signed")
}
