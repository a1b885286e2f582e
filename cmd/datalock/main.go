package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	flag "github.com/spf13/pflag"

	"github.com/saylorsolutions/datalock/cmd/internal"
	"github.com/saylorsolutions/datalock/internal/batch"
	"github.com/saylorsolutions/datalock/internal/config"
	"github.com/saylorsolutions/datalock/internal/passphrase"
)

var version = "dev"

type options struct {
	help        bool
	showVersion bool

	manifest   string
	outDir     string
	sourceDir  string
	parallel   int
	format     string
	kdf        string
	iterations uint32
	suite      string
	bindName   bool
	confirm    bool
	quiet      bool
	logLevel   string
}

func newFlagSet(opts *options) *flag.FlagSet {
	defaults := config.Default()
	flags := flag.NewFlagSet("datalock", flag.ContinueOnError)
	flags.BoolVarP(&opts.help, "help", "h", false, "Prints this usage information.")
	flags.BoolVar(&opts.showVersion, "version", false, "Prints the version and exits.")
	flags.StringVarP(&opts.manifest, "manifest", "m", "", "YAML manifest listing the files to process.")
	flags.StringVarP(&opts.outDir, "out", "o", "", "Directory for output files. Overrides the manifest's out_dir.")
	flags.StringVarP(&opts.sourceDir, "source-dir", "s", "", "Directory relative sources are read from. Overrides the manifest's source_dir.")
	flags.IntVarP(&opts.parallel, "parallel", "j", defaults.Parallel, "Number of files processed at once. Each v1 decryption may use up to 1GiB for scrypt or argon2id, so lower this on small machines.")
	flags.StringVar(&opts.format, "format", defaults.Format, "Payload format to encrypt with, 'raw' or 'v1'. Only raw payloads are readable by the browser client. When decrypting with raw, v1 payloads are still recognized by their header.")
	flags.StringVar(&opts.kdf, "kdf", defaults.KDF, "Key derivation function, 'pbkdf2', 'scrypt', or 'argon2id'. Anything but pbkdf2 requires --format v1.")
	flags.Uint32Var(&opts.iterations, "iterations", defaults.Iterations, "PBKDF2 iteration count. Must match the client when using the raw format.")
	flags.StringVar(&opts.suite, "suite", defaults.Suite, "AEAD suite, 'aes-gcm' or 'chacha20'. chacha20 requires --format v1.")
	flags.BoolVar(&opts.bindName, "bind-name", false, "Authenticate the encrypted file's name so payloads can't be swapped. The same flag is needed to decrypt.")
	flags.BoolVar(&opts.confirm, "confirm", true, "Ask for the passphrase twice when encrypting interactively.")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Only report warnings and errors, and skip the summary.")
	flags.StringVar(&opts.logLevel, "log-level", defaults.LogLevel, "Log level, 'debug', 'info', 'warn', or 'error'.")
	flags.Usage = func() {
		fmt.Printf(`
datalock encrypts static data files with a passphrase so they can be published and decrypted in a browser, and decrypts them again.
Each file is stored as base64(salt || nonce || ciphertext || tag), using PBKDF2-HMAC-SHA256 and AES-256-GCM by default.

USAGE:  datalock encrypt|decrypt [FLAGS] [SRC[:DST] ...]

ARGS:
    SRC is a file to process, relative to --source-dir if given.
    DST is optional. It defaults to SRC%[2]s when encrypting, and SRC without %[2]s (or with %[3]s appended) when decrypting.

FLAGS:
%[1]s
PASSPHRASE:
    The passphrase is read from the %[4]s environment variable if set.
Otherwise it's prompted for on the terminal, or read as the first line of stdin when piped.
Leading and trailing whitespace is removed, and an empty passphrase is rejected.

MANIFEST:
    source_dir: ../backend/data
    out_dir: ../data_encrypted
    files:
      - source: char_freq.json
        destination: char_freq.json.enc
`, flags.FlagUsages(), config.EncryptSuffix, config.DecryptSuffix, passphrase.EnvVar)
	}
	return flags
}

// buildConfig assembles and validates a Config from parsed flags and positional arguments.
// The first argument is the mode.
func buildConfig(opts *options, args []string) (*config.Config, error) {
	if len(args) == 0 {
		return nil, errors.New("missing required mode argument, expected 'encrypt' or 'decrypt'")
	}
	cfg := config.Default()
	cfg.Mode = args[0]
	cfg.Parallel = opts.parallel
	cfg.Format = opts.format
	cfg.KDF = opts.kdf
	cfg.Iterations = opts.iterations
	cfg.Suite = opts.suite
	cfg.BindName = opts.bindName
	cfg.Confirm = opts.confirm
	cfg.Quiet = opts.quiet
	cfg.LogLevel = opts.logLevel
	cfg.SourceDir = opts.sourceDir
	cfg.OutDir = opts.outDir

	if opts.manifest != "" {
		m, err := config.LoadManifest(opts.manifest)
		if err != nil {
			return nil, err
		}
		m.Apply(&cfg)
	}
	for _, arg := range args[1:] {
		cfg.Tasks = append(cfg.Tasks, config.ParseTaskArg(arg))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	var opts options
	flags := newFlagSet(&opts)
	if len(os.Args) == 1 {
		flags.Usage()
		return
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		flags.Usage()
		internal.Fatal("Error parsing flags: %v", err)
	}
	if opts.help {
		flags.Usage()
		return
	}
	if opts.showVersion {
		internal.Echo("datalock %s", version)
		return
	}

	cfg, err := buildConfig(&opts, flags.Args())
	if err != nil {
		internal.Fatal("Invalid configuration: %v", err)
	}
	log := internal.NewLogger(cfg.LogLevel, cfg.Quiet)

	pass, err := passphrase.NewReader().Read("Passphrase: ", cfg.Confirm && cfg.Mode == config.ModeEncrypt)
	if err != nil {
		internal.Fatal("Failed to read passphrase: %v", err)
	}
	defer pass.Zero()

	proc, err := batch.New(cfg, pass, log)
	if err != nil {
		pass.Zero()
		internal.Fatal("Failed to set up %s: %v", cfg.Mode, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tasks := cfg.Resolved()
	log.Debug().Int("tasks", len(tasks)).Int("parallel", cfg.Parallel).Str("format", cfg.Format).Msg("Starting batch")
	summary, err := proc.Run(ctx, tasks)
	if !cfg.Quiet {
		summary.Print(os.Stderr)
	}
	if err != nil || !summary.OK() {
		pass.Zero()
		stop()
		internal.Fatal("Batch finished with errors")
	}
}
