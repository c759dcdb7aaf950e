package utils

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math/rand"
	"sort"
	"time"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Random an integer within the range
func Random(a, b int) int {
	return rand.Intn(b-a+1) + a
}

func RandomFloat(a, b float64) float64 {
	return a + rand.Float64()*(b-a)
}

func RandomTime(a, b time.Duration) time.Duration {
	return time.Duration(rand.Int63n(int64(b-a+1)) + int64(a))
}

func RandomBool(prob float64) bool {
	return rand.Float64() < prob
}

// ReadFromJSON reads the given JSON file and unmarshals it into v.
func ReadFromJSON(v interface{}, filepath string) error {
	data, err := ioutil.ReadFile(filepath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// PrintUsage prints the command usage map sorted by command name.
func PrintUsage(usage map[string]string) {
	cmds := make([]string, 0, len(usage))
	for cmd := range usage {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)
	fmt.Println("Usage:")
	for _, cmd := range cmds {
		fmt.Printf("  %v %v\n", cmd, usage[cmd])
	}
}
