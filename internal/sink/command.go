package sink

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Command locks the session by running an external program.
type Command struct {
	argv   []string
	logger zerolog.Logger
}

// NewCommand creates a locker running argv.
func NewCommand(argv []string, logger zerolog.Logger) (*Command, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("lock command is empty")
	}
	return &Command{
		argv:   argv,
		logger: logger.With().Str("component", "sink").Str("backend", "command").Logger(),
	}, nil
}

func (c *Command) Lock(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", strings.Join(c.argv, " "), err, strings.TrimSpace(string(output)))
	}

	c.logger.Info().Strs("command", c.argv).Msg("Lock command completed")
	return nil
}
