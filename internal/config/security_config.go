package config

type SecurityConfig interface {
	GetPasswordMinLength() int
	GetPasswordRequireDigit() bool
	GetPasswordRequireUpper() bool
	GetPasswordRequireLower() bool
	GetPasswordRequireSymbol() bool
	GetExposePasswordHashes() bool
}

type Security struct {
	PasswordMinLength     int  `yaml:"password_min_length" env:"PASSWORD_MIN_LENGTH" env-default:"6" env-description:"Minimum password length"`
	PasswordRequireDigit  bool `yaml:"password_require_digit" env:"PASSWORD_REQUIRE_DIGIT" env-default:"false"`
	PasswordRequireUpper  bool `yaml:"password_require_upper" env:"PASSWORD_REQUIRE_UPPER" env-default:"false"`
	PasswordRequireLower  bool `yaml:"password_require_lower" env:"PASSWORD_REQUIRE_LOWER" env-default:"false"`
	PasswordRequireSymbol bool `yaml:"password_require_symbol" env:"PASSWORD_REQUIRE_SYMBOL" env-default:"false"`
	// Off by default, /users then returns an empty passwordHash.
	ExposePasswordHashes bool `yaml:"expose_password_hashes" env:"EXPOSE_PASSWORD_HASHES" env-default:"false" env-description:"Include bcrypt hashes in GET /users"`
}

var _ SecurityConfig = Security{}

func (s Security) GetPasswordMinLength() int {
	if s.PasswordMinLength <= 0 {
		return 6
	}
	return s.PasswordMinLength
}

func (s Security) GetPasswordRequireDigit() bool {
	return s.PasswordRequireDigit
}

func (s Security) GetPasswordRequireUpper() bool {
	return s.PasswordRequireUpper
}

func (s Security) GetPasswordRequireLower() bool {
	return s.PasswordRequireLower
}

func (s Security) GetPasswordRequireSymbol() bool {
	return s.PasswordRequireSymbol
}

func (s Security) GetExposePasswordHashes() bool {
	return s.ExposePasswordHashes
}
