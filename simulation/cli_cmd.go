/*
 * Project: rpc-lite
 * ---------------------
 * Authors:
 *   Minjian Chen 813534
 *   Shijie Liu   813277
 *   Weizhi Xu    752454
 *   Wenqing Xue  813044
 *   Zijun Chen   813190
 */

package simulation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/PwzXxm/rpc-lite/rpc"
	"github.com/PwzXxm/rpc-lite/rpccore"
	"github.com/PwzXxm/rpc-lite/utils"
	"github.com/pkg/errors"
)

const (
	cmdID      = "id"
	cmdInfo    = "info"
	cmdCall    = "call"
	cmdSync    = "sync"
	cmdStopAll = "stopall"
	cmdWait    = "wait"
	cmdHelp    = "help"
)

var usageMp = map[string]string{
	cmdID:      "",
	cmdInfo:    "<worker_1> <worker_2> ...",
	cmdCall:    "<from_worker> <to_worker> <function> [json_args]",
	cmdSync:    "<worker>",
	cmdStopAll: "",
	cmdWait:    "<seconds>",
	cmdHelp:    "",
}

var scanner *bufio.Scanner

func init() {
	scanner = bufio.NewScanner(os.Stdin)
}

// StartReadingCMD reads cmd from STDIN until EOF
func (l *local) StartReadingCMD() {
	invalidCommandError := errors.New("Invalid command")
	var err error

	for scanner.Scan() {
		cmd := strings.Fields(scanner.Text())

		err = nil
		n := len(cmd)

		if n == 0 {
			err = errors.New("Command cannot be empty")
		}

		if err == nil {
			switch cmd[0] {
			case cmdID, cmdStopAll, cmdHelp:
				if n != 1 {
					err = combineErrorUsage(invalidCommandError, cmd[0])
					break
				}

				switch cmd[0] {
				case cmdID:
					l.printIDs()
				case cmdStopAll:
					l.StopAll()
				case cmdHelp:
					utils.PrintUsage(usageMp)
				}
			case cmdInfo:
				if n < 2 {
					err = combineErrorUsage(invalidCommandError, cmd[0])
					break
				}

				workers, e := l.validateWorkers(cmd, 1, len(cmd))
				if e != nil {
					err = e
					break
				}

				for _, worker := range workers {
					l.printAgentInfo(worker)
				}
			case cmdSync:
				if n != 2 {
					err = combineErrorUsage(invalidCommandError, cmd[0])
					break
				}
				err = l.Sync(rpccore.NodeID(cmd[1]))
			case cmdWait:
				if n != 2 {
					err = combineErrorUsage(invalidCommandError, cmd[0])
					break
				}

				sec, e := strconv.Atoi(cmd[1])
				if e != nil {
					err = e
					break
				}

				l.Wait(sec)
			case cmdCall:
				if n < 4 {
					err = combineErrorUsage(invalidCommandError, cmd[0])
					break
				}
				err = l.callFromCmd(cmd)
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

// callFromCmd parses "call <from> <to> <fn> [json_args]" and prints the
// result of the blocking call.
func (l *local) callFromCmd(cmd []string) error {
	workers, err := l.validateWorkers(cmd, 1, 3)
	if err != nil {
		return err
	}

	var args []interface{}
	if len(cmd) > 4 {
		raw := strings.Join(cmd[4:], " ")
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return errors.Wrapf(err, "Arguments must be a JSON array, got %v", raw)
		}
	}

	result, err := l.Call(workers[0], workers[1], rpc.Function(cmd[3]), args, nil)
	if err != nil {
		return err
	}
	fmt.Printf("%v\n", result)
	return nil
}

// validateWorkers checks whether the worker names exist in the group
func (l *local) validateWorkers(workers []string, lo, hi int) ([]rpccore.NodeID, error) {
	rst := make([]rpccore.NodeID, 0)
	for i := lo; i < hi && i < len(workers); i++ {
		nodeID := rpccore.NodeID(workers[i])
		if _, ok := l.agents[nodeID]; ok {
			rst = append(rst, nodeID)
		} else {
			return nil, errors.New("Unable to find worker in the current group")
		}
	}
	return rst, nil
}

func (l *local) printIDs() {
	fmt.Print("[")
	rst := l.getAllNodeIDs()
	for i, id := range rst {
		if i == 0 {
			fmt.Printf("%v", id)
		} else {
			fmt.Printf(" %v", id)
		}
	}
	fmt.Println("]")
}

func (l *local) printAgentInfo(worker rpccore.NodeID) {
	a := l.agents[worker]
	fmt.Printf("Agent info of [%v]\n", worker)
	for k, v := range a.GetInfo() {
		fmt.Printf("  %v: %v\n", k, v)
	}
}
