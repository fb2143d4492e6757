package devenv

// CasTestConfig holds real portal credentials for the live login test. It is
// read from dev/.state/cas_config.json5 and the test is skipped without it.
type CasTestConfig struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Year     int    `json:"year"`
	Semester int    `json:"semester"`
}
