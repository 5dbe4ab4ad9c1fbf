package region

// AwsRegion はAWSリージョンを表す
type AwsRegion struct {
	RegionName  string
	OptInStatus string
}

// Enabled はアカウントで利用可能なリージョンかどうか
func (r AwsRegion) Enabled() bool {
	switch r.OptInStatus {
	case "opt-in-not-required", "opted-in":
		return true
	}
	return false
}
