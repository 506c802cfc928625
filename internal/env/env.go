package env

import (
	"os"
)

const (
	AWSRegion        = "AWS_REGION"
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
	SessionSecretKey = "SESSION_SECRET"
	InquiryRedisURL  = "INQUIRY_REDIS_URL"
	InquiryRedisPass = "INQUIRY_REDIS_PASS"
	WebUrl           = "WEB_URL"

	// Marketplace collaborators; resolved lazily by the services that
	// need them.
	AgencyDirectoryURL   = "AGENCY_DIRECTORY_URL"
	PropertyDirectoryURL = "PROPERTY_DIRECTORY_URL"
)

func init() {
	required := []string{
		AWSRegion,
		AWSID,
		AWSSecret,
		SessionSecretKey,
		InquiryRedisURL,
		WebUrl,
	}
	for _, key := range required {
		if os.Getenv(key) == "" {
			panic("env: required environment variable not set: " + key)
		}
	}
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}
