// Package config holds the batch configuration assembled from flags and an optional manifest file.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/saylorsolutions/datalock/pkg/passlock"
)

const (
	ModeEncrypt = "encrypt"
	ModeDecrypt = "decrypt"

	// EncryptSuffix is appended to a source name when no destination is given.
	EncryptSuffix = ".enc"
	// DecryptSuffix is appended when decrypting a file that doesn't carry EncryptSuffix.
	DecryptSuffix = ".dec"
)

// FileTask is one unit of work: read Source, write the transformed bytes to Destination.
type FileTask struct {
	Source      string `yaml:"source" validate:"required"`
	Destination string `yaml:"destination"`
}

type Config struct {
	Mode       string `validate:"required,oneof=encrypt decrypt"`
	Parallel   int    `validate:"min=1"`
	Format     string `validate:"required,oneof=raw v1"`
	KDF        string `validate:"required,oneof=pbkdf2 scrypt argon2id"`
	Iterations uint32 `validate:"min=1"`
	Suite      string `validate:"required,oneof=aes-gcm chacha20"`
	LogLevel   string `validate:"required,oneof=debug info warn error"`

	BindName bool
	Confirm  bool
	Quiet    bool

	SourceDir string
	OutDir    string

	Tasks []FileTask `validate:"min=1,dive"`
}

// Default returns a Config producing payloads the browser client can read, using PBKDF2 with 200,000 iterations and AES-256-GCM.
func Default() Config {
	return Config{
		Mode:       ModeEncrypt,
		Parallel:   runtime.NumCPU(),
		Format:     passlock.FormatRaw.String(),
		KDF:        "pbkdf2",
		Iterations: passlock.DefaultPBKDF2Iterations,
		Suite:      "aes-gcm",
		LogLevel:   "info",
	}
}

// Validate validates the configuration against the struct tags, and checks option combinations the tags can't express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}
	if c.Format == passlock.FormatRaw.String() && (c.KDF != "pbkdf2" || c.Suite != "aes-gcm") {
		return fmt.Errorf("validating configuration: the raw format requires --kdf pbkdf2 and --suite aes-gcm, use --format v1 for other choices")
	}
	return nil
}

// ParseTaskArg parses a SRC[:DST] command line argument.
func ParseTaskArg(arg string) FileTask {
	src, dst, _ := strings.Cut(arg, ":")
	return FileTask{Source: src, Destination: dst}
}

// Resolved returns the tasks with defaults applied.
// Relative sources are joined to SourceDir. Missing destinations are derived from the source name,
// and relative destinations are joined to OutDir, or placed beside the source when OutDir is empty.
func (c *Config) Resolved() []FileTask {
	tasks := make([]FileTask, 0, len(c.Tasks))
	for _, task := range c.Tasks {
		src := task.Source
		if c.SourceDir != "" && !filepath.IsAbs(src) {
			src = filepath.Join(c.SourceDir, src)
		}

		dst := task.Destination
		if dst == "" {
			dst = c.defaultName(filepath.Base(src))
			if c.OutDir == "" {
				dst = filepath.Join(filepath.Dir(src), dst)
			}
		}
		if c.OutDir != "" && !filepath.IsAbs(dst) {
			dst = filepath.Join(c.OutDir, dst)
		}
		tasks = append(tasks, FileTask{Source: filepath.Clean(src), Destination: filepath.Clean(dst)})
	}
	return tasks
}

func (c *Config) defaultName(base string) string {
	if c.Mode == ModeDecrypt {
		if trimmed := strings.TrimSuffix(base, EncryptSuffix); trimmed != base && trimmed != "" {
			return trimmed
		}
		return base + DecryptSuffix
	}
	return base + EncryptSuffix
}

// LockerOpts translates the cipher settings into passlock options.
func (c *Config) LockerOpts() ([]passlock.LockerOpt, error) {
	var opts []passlock.LockerOpt

	switch c.Format {
	case "raw":
		opts = append(opts, passlock.WithFormat(passlock.FormatRaw))
	case "v1":
		opts = append(opts, passlock.WithFormat(passlock.FormatVersioned))
	default:
		return nil, fmt.Errorf("unknown format %q", c.Format)
	}

	switch c.Suite {
	case "aes-gcm":
		opts = append(opts, passlock.WithSuite(passlock.SuiteAES256GCM))
	case "chacha20":
		opts = append(opts, passlock.WithSuite(passlock.SuiteChaCha20Poly1305))
	default:
		return nil, fmt.Errorf("unknown suite %q", c.Suite)
	}

	switch c.KDF {
	case "pbkdf2":
		opts = append(opts, passlock.WithDeriverOpts(passlock.UsePBKDF2(c.Iterations)))
	case "scrypt":
		opts = append(opts, passlock.WithDeriverOpts(passlock.UseDefaultScrypt()))
	case "argon2id":
		opts = append(opts, passlock.WithDeriverOpts(passlock.UseDefaultArgon2id()))
	default:
		return nil, fmt.Errorf("unknown kdf %q", c.KDF)
	}
	return opts, nil
}
