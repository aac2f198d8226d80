package validation

const (
	// Password requirements. bcrypt ignores input past 72 bytes.
	MinPasswordLength = 8
	MaxPasswordLength = 72

	MinNameLength = 2
	MaxNameLength = 120

	MinReferralCodeLength = 4
)
