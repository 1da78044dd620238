package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printFn and printlnFn are test seams for user-facing REPL output.
var (
	printFn   = fmt.Print
	printlnFn = fmt.Println
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Touch()
	Status(ctx context.Context) error
	Setup(ctx context.Context) error
	Migrate(ctx context.Context) error
	Import(ctx context.Context) error
	Unlock(ctx context.Context) error
	Lock(ctx context.Context) error
	Show(ctx context.Context) error
	PubKey(ctx context.Context) error
	Timeout(ctx context.Context, args []string) error
	Reauth(ctx context.Context, args []string) error
	Forget(ctx context.Context) error
	Reset(ctx context.Context) error
}

const helpText = `Available commands:
  status            onboarding and session state
  setup             register this device's authenticator
  migrate           move a legacy plaintext phrase behind the authenticator
  import            encrypt a recovery phrase into the wallet
  unlock | lock     start or end the session
  show              print the recovery phrase (unlocked only)
  pubkey            print the authenticator public key
  timeout [min]     show or set the inactivity timeout
  reauth on|off     always ask for the authenticator on start
  forget            remove authenticator credentials
  reset             erase credentials and the encrypted wallet
  exit | quit       leave the program`

// runREPL reads commands from reader until EOF, "exit"/"quit" or ctx is done.
//
// Each non-empty line counts as user activity and is reported to a.Touch
// before dispatch. Handler errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printFn(fmt.Sprintf("wallet %s> ", statusFn()))

		line, err := readLine(reader)
		if err != nil {
			printlnFn()
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		a.Touch()

		switch cmd {
		case "help":
			printlnFn(helpText)
		case "status":
			err = a.Status(ctx)
		case "setup":
			err = a.Setup(ctx)
		case "migrate":
			err = a.Migrate(ctx)
		case "import":
			err = a.Import(ctx)
		case "unlock":
			err = a.Unlock(ctx)
		case "lock":
			err = a.Lock(ctx)
		case "show":
			err = a.Show(ctx)
		case "pubkey":
			err = a.PubKey(ctx)
		case "timeout":
			err = a.Timeout(ctx, args)
		case "reauth":
			err = a.Reauth(ctx, args)
		case "forget":
			err = a.Forget(ctx)
		case "reset":
			err = a.Reset(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
