package functests

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

type testCase struct {
	name   string
	action func() error
}

var testCases = []testCase{
	{
		name:   "blocking call equals local call",
		action: caseBlockingTensorAdd,
	},
	{
		name:   "async futures resolve independently",
		action: caseAsyncFutures,
	},
	{
		name:   "all five callable kinds dispatch",
		action: caseAllCallableKinds,
	},
	{
		name:   "remote errors carry kind and message",
		action: caseErrorPropagation,
	},
	{
		name:   "sync barrier orders dependent batches",
		action: caseSyncBarrier,
	},
	{
		name:   "join drains and rejects later calls",
		action: caseJoinThenReject,
	},
	{
		name:   "nested call through a third worker",
		action: caseNestedCall,
	},
	{
		name:   "1000 async noops",
		action: caseStressNoops,
	},
	{
		name:   "heavy payload under latency",
		action: caseHeavyPayload,
	},
}

func List() {
	for i, c := range testCases {
		fmt.Printf("%2d: %v\n", i+1, c.name)
	}
}

func Count() {
	fmt.Printf("%v\n", len(testCases))
}

func Run(n int) error {
	if n <= 0 || n > len(testCases) {
		return errors.New("Please provide a valid test case id.")
	}
	c := testCases[n-1]
	fmt.Printf("--------------------\n")
	fmt.Printf("running test %2d: %v\n", n, c.name)
	fmt.Printf("--------------------\n")
	t := time.Now()
	err := c.action()
	fmt.Printf("\n--------------------\n")
	if err == nil {
		color.Green("SUCCESS\n")
	} else {
		color.Red("FAIL\n")
	}
	fmt.Printf("Time used: %.2fs\n", time.Since(t).Seconds())
	fmt.Printf("--------------------\n")
	return err
}
