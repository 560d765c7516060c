package rules

// BlockSettings holds the five independent blocking toggles. Fields are
// mutated only through explicit updates; every field has a deterministic
// default.
type BlockSettings struct {
	BlockAll            bool `json:"block_all"`
	BlockAnonymous      bool `json:"block_anonymous"`
	BlockNoValidNumber  bool `json:"block_no_valid_number"`
	BlockSuspiciousIP   bool `json:"block_suspicious_ip"`
	BlockUnknownServers bool `json:"block_unknown_servers"`
}

// DefaultBlockSettings returns the first-run configuration: everything
// except total blocking enabled.
func DefaultBlockSettings() BlockSettings {
	return BlockSettings{
		BlockAll:            false,
		BlockAnonymous:      true,
		BlockNoValidNumber:  true,
		BlockSuspiciousIP:   true,
		BlockUnknownServers: true,
	}
}
