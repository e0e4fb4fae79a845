package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dkrall/sevault/internal/config"
	"github.com/dkrall/sevault/internal/logging"
	"github.com/dkrall/sevault/internal/record"
	"github.com/dkrall/sevault/internal/seclient"
	"github.com/dkrall/sevault/internal/signer"
	"github.com/dkrall/sevault/internal/transport"
)

const usage = `usage: sevaultctl [flags] <command> [args]

commands:
  store <username> <address> [payload-file]   store a record (stdin when no file)
  read <username> <address>                   read a record to stdout
  delete <username> <address>                 delete a record (fixed layout only)
  cplc                                        print card production data

flags:
`

func main() {
	cfgPath := flag.String("config", "", "path to sevault.toml")
	reader := flag.String("reader", "", "reader name substring override")
	fixed := flag.Bool("fixed", false, "use the fixed-width record layout")
	compress := flag.Bool("compress", false, "zstd-compress payloads before store")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logging.Init("sevaultctl")

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fatal(log, err)
	}
	if cfg.LogLevel != "" {
		level, _ := logging.ParseLevel(cfg.LogLevel)
		log = log.Level(level)
	}
	if *reader != "" {
		cfg.Reader = *reader
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(log, cfg, args[0], args[1:], *fixed, *compress); err != nil {
		fatal(log, err)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func run(log zerolog.Logger, cfg config.Config, command string, args []string, fixed, compress bool) error {
	conn, err := transport.Connect(cfg.Reader, cfg.AIDBytes())
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := seclient.New(conn,
		seclient.WithChunkSize(cfg.ChunkSize),
		seclient.WithReadHint(cfg.ReadHint),
		seclient.WithLogger(log),
	)
	if err != nil {
		return err
	}

	switch command {
	case "store":
		return runStore(client, cfg, args, fixed, compress)
	case "read":
		return runRead(client, cfg, args, fixed)
	case "delete":
		return runDelete(client, cfg, args, fixed)
	case "cplc":
		return runCPLC(client)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func identityArgs(args []string) (string, string, error) {
	if len(args) < 2 {
		return "", "", fmt.Errorf("username and address arguments required")
	}
	return args[0], args[1], nil
}

func readPayload(args []string) ([]byte, error) {
	if len(args) >= 3 {
		return os.ReadFile(args[2])
	}
	return readAll(os.Stdin)
}

func runStore(client *seclient.Client, cfg config.Config, args []string, fixed, compress bool) error {
	username, address, err := identityArgs(args)
	if err != nil {
		return err
	}
	payload, err := readPayload(args)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	if compress {
		payload, err = compressPayload(payload)
		if err != nil {
			return err
		}
	}

	if fixed {
		index, count, err := client.StoreRecord(username, []byte(address), payload)
		if err != nil {
			return err
		}
		fmt.Printf("stored record %d (%d on card)\n", index, count)
		return nil
	}
	if err := client.Store(record.NewKey(username, address), payload); err != nil {
		return err
	}
	fmt.Printf("stored %d bytes\n", len(payload))
	return nil
}

func runRead(client *seclient.Client, cfg config.Config, args []string, fixed bool) error {
	username, address, err := identityArgs(args)
	if err != nil {
		return err
	}
	s, err := buildSigner(cfg.Signer)
	if err != nil {
		return err
	}

	var payload []byte
	if fixed {
		payload, err = client.ReadRecord(username, []byte(address), s)
	} else {
		policy, perr := config.ParseDigestPolicy(cfg.Signer.DigestPolicy)
		if perr != nil {
			return perr
		}
		var env record.Envelope
		env, err = record.Authorize(record.NewKey(username, address), s, policy)
		if err != nil {
			return err
		}
		payload, err = client.Read(env)
	}
	if err != nil {
		return err
	}

	payload, err = maybeDecompress(payload)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(payload)
	return err
}

func runDelete(client *seclient.Client, cfg config.Config, args []string, fixed bool) error {
	if !fixed {
		return fmt.Errorf("delete is only supported on the fixed record layout")
	}
	username, address, err := identityArgs(args)
	if err != nil {
		return err
	}
	s, err := buildSigner(cfg.Signer)
	if err != nil {
		return err
	}
	index, remaining, err := client.DeleteRecord(username, []byte(address), s)
	if err != nil {
		return err
	}
	fmt.Printf("deleted record %d (%d remaining)\n", index, remaining)
	return nil
}

func runCPLC(client *seclient.Client) error {
	data, err := client.GetCPLC()
	if err != nil {
		return err
	}
	fmt.Printf("%X\n", data)
	return nil
}

func buildSigner(cfg config.SignerConfig) (record.Signer, error) {
	switch cfg.Backend {
	case "file":
		return signer.LoadFileSigner(cfg.KeyPath)
	case "secp256k1":
		raw, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read secp256k1 key: %w", err)
		}
		return signer.Secp256k1FromHex(strings.TrimSpace(string(raw)))
	case "remote":
		return signer.NewRemoteSigner(cfg.URL), nil
	default:
		return nil, fmt.Errorf("unknown signer backend %q", cfg.Backend)
	}
}

func fatal(log zerolog.Logger, err error) {
	log.Error().Err(err).Msg("sevaultctl failed")
	os.Exit(1)
}
