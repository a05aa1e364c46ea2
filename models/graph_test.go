package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionIsIIP(t *testing.T) {
	wired := Connection{
		Src: &Endpoint{Process: "a", Port: "out"},
		Tgt: Endpoint{Process: "b", Port: "in"},
	}
	iip := Connection{
		Data: 42,
		Tgt:  Endpoint{Process: "b", Port: "in"},
	}
	assert.False(t, wired.IsIIP())
	assert.True(t, iip.IsIIP())
}

func TestProcessConfig(t *testing.T) {
	var nilProc *Process
	assert.Nil(t, nilProc.Config())

	assert.Nil(t, (&Process{Component: "NoOp"}).Config())

	p := &Process{
		Component: "SubNet",
		Metadata: map[string]interface{}{
			"config": map[string]interface{}{"graph": "child.json"},
		},
	}
	assert.Equal(t, "child.json", p.Config()["graph"])

	malformed := &Process{
		Component: "NoOp",
		Metadata:  map[string]interface{}{"config": "not a map"},
	}
	assert.Nil(t, malformed.Config())
}
