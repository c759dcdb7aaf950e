package rpccore

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func init() {
	fmt.Println("* rpc core test *")
}

func TestNewNode(t *testing.T) {
	network := NewChanNetwork(time.Second)
	defer network.Shutdown()

	_, err := network.NewNode("node")
	if err != nil {
		t.Errorf("Node A should have no error.\n")
	}

	_, err = network.NewNode("node")
	if err == nil {
		t.Errorf("Node B should have same ID with A.\n")
	}
}

func TestNewRemoteNode(t *testing.T) {
	network := NewChanNetwork(time.Second)
	defer network.Shutdown()

	_, err := network.NewNode("nodeA")
	if err != nil {
		t.Errorf("Node A should have no error.\n")
	}

	if err := network.NewRemoteNode("nodeA", "ignored"); err != nil {
		t.Errorf("Node A lives on this network: %v", err)
	}
	if err := network.NewRemoteNode("nodeX", "ignored"); err == nil {
		t.Errorf("Node X doesn't live on this network.")
	}
}

func TestCommunication(t *testing.T) {
	network := NewChanNetwork(time.Second)
	defer network.Shutdown()

	nodeA, _ := network.NewNode("nodeA")
	nodeB, _ := network.NewNode("nodeB")
	nodeC, _ := network.NewNode("nodeC")

	nodeB.RegisterRawRequestCallback(func(source NodeID, method string, data []byte) ([]byte, error) {
		str := string(data[:])
		if str == "Test: A -> B" {
			return []byte(string(source)), nil
		} else {
			return []byte(string(source)), errors.New("Incorrect data")
		}
	})

	data := []byte("Test: A -> B")
	res, err := nodeA.SendRawRequest(NodeID("nodeB"), "test", data)
	if err != nil {
		t.Errorf("Node A should receive callback")
	}
	if string(res) != "nodeA" {
		t.Errorf("Unexpected response data: %v", string(res))
	}

	data = []byte("Test: C -> B")
	_, err = nodeC.SendRawRequest(NodeID("nodeB"), "test", data)
	if err == nil {
		t.Errorf("Node C should receive error")
	}
}

func TestSendToUnknownNode(t *testing.T) {
	network := NewChanNetwork(time.Second)
	defer network.Shutdown()

	nodeA, _ := network.NewNode("nodeA")
	_, err := nodeA.SendRawRequest(NodeID("ghost"), "test", nil)
	if err == nil {
		t.Errorf("Sending to an unknown node should fail.")
	}
}

func TestRequestTimeout(t *testing.T) {
	network := NewChanNetwork(200 * time.Millisecond)
	defer network.Shutdown()

	nodeA, _ := network.NewNode("nodeA")
	nodeB, _ := network.NewNode("nodeB")
	nodeB.RegisterRawRequestCallback(func(source NodeID, method string, data []byte) ([]byte, error) {
		time.Sleep(time.Second)
		return nil, nil
	})

	_, err := nodeA.SendRawRequest(NodeID("nodeB"), "test", nil)
	if err == nil {
		t.Errorf("Request should time out.")
	}
}

func BenchmarkCommunication(b *testing.B) {
	network := NewChanNetwork(10 * time.Second)
	defer network.Shutdown()

	nodeA, _ := network.NewNode("nodeA")
	nodeB, _ := network.NewNode("nodeB")
	nodeC, _ := network.NewNode("nodeC")

	callbackHandler := func(source NodeID, method string, data []byte) ([]byte, error) {
		return []byte(string(source)), nil
	}

	nodeA.RegisterRawRequestCallback(callbackHandler)
	nodeB.RegisterRawRequestCallback(callbackHandler)
	nodeC.RegisterRawRequestCallback(callbackHandler)

	b.ResetTimer()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < b.N; j++ {
				switch {
				case i < 2:
					nodeA.SendRawRequest(NodeID("nodeB"), "test", []byte("Test: A -> B"))
				case i < 4:
					nodeB.SendRawRequest(NodeID("nodeC"), "test", []byte("Test: B -> C"))
				case i < 6:
					nodeC.SendRawRequest(NodeID("nodeA"), "test", []byte("Test: C -> A"))
				}
			}
		}(i)
	}
	wg.Wait()
}
