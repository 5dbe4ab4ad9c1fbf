package aws

import (
	"github.com/aws/aws-sdk-go-v2/aws"
)

func testConfig(region string) aws.Config {
	return aws.Config{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
	}
}
