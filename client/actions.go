package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/PwzXxm/rpc-lite/rpc"
	"github.com/PwzXxm/rpc-lite/rpccore"
	"github.com/PwzXxm/rpc-lite/utils"
	"github.com/pkg/errors"
)

const (
	cmdCall    = "call"
	cmdWorkers = "workers"
	cmdHelp    = "help"
	cmdQuit    = "quit"
)

var usageMp = map[string]string{
	cmdCall:    "<worker> <function> [json_args]",
	cmdWorkers: "",
	cmdHelp:    "",
	cmdQuit:    "",
}

// startReadingCmd reads commands from STDIN until EOF or quit
func (c *Client) startReadingCmd() {
	invalidCommandError := errors.New("Invalid command")
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Enter `help` for usage.")
	for scanner.Scan() {
		cmd := strings.Fields(scanner.Text())

		var err error
		n := len(cmd)

		if n == 0 {
			err = errors.New("Command cannot be empty")
		}

		if err == nil {
			switch cmd[0] {
			case cmdQuit:
				return
			case cmdHelp:
				utils.PrintUsage(usageMp)
			case cmdWorkers:
				fmt.Println(c.workers)
			case cmdCall:
				if n < 3 {
					err = combineErrorUsage(invalidCommandError, cmd[0])
					break
				}
				err = c.callFromCmd(cmd)
			default:
				err = invalidCommandError
			}
		}

		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "Failed reading stdout: ", err)
	}
}

func combineErrorUsage(e error, cmd string) error {
	return errors.New(e.Error() + "\nUsage: " + cmd + " " + usageMp[cmd])
}

// parseJSONArgs decodes positional call arguments given as a JSON array.
// An empty string means no arguments.
func parseJSONArgs(raw string) ([]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var args []interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, errors.Wrapf(err, "Arguments must be a JSON array, got %v", raw)
	}
	return args, nil
}

func (c *Client) callFromCmd(cmd []string) error {
	target := rpccore.NodeID(cmd[1])
	known := false
	for _, w := range c.workers {
		if w == target {
			known = true
			break
		}
	}
	if !known {
		return errors.Errorf("Unknown worker: %v.", target)
	}

	args, err := parseJSONArgs(strings.Join(cmd[3:], " "))
	if err != nil {
		return err
	}

	result, err := c.Call(target, rpc.Function(cmd[2]), args, nil)
	if err != nil {
		return err
	}
	fmt.Printf("%v\n", result)
	return nil
}
