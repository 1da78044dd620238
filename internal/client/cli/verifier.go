package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/Zet-money/zet-wallet-sub000/internal/client/authn/softauth"
	"github.com/Zet-money/zet-wallet-sub000/internal/common"
)

// terminalVerifier stands in for the biometric sensor: the user approves
// each ceremony at the prompt.
func terminalVerifier(reader *bufio.Reader, w io.Writer) softauth.VerifierFunc {
	return func(ctx context.Context, p softauth.Prompt) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", common.ErrUserCancelled, err)
		}
		action := "unlock the wallet"
		if p.Registering {
			action = "register this device"
		}
		ok, err := Confirm(reader, fmt.Sprintf("Approve request to %s for %s?", action, p.RPID), w)
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrUserCancelled, err)
		}
		if !ok {
			return common.ErrUserCancelled
		}
		return nil
	}
}
