package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerr "fortuned/internal/errors"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"OPEN", Command{Verb: VerbOpen, Name: DefaultResource}},
		{"open cookie", Command{Verb: VerbOpen, Name: "cookie"}},
		{"  READ abc 16  ", Command{Verb: VerbRead, Handle: "abc", Size: 16}},
		{"Stat abc", Command{Verb: VerbStat, Handle: "abc"}},
		{"CLOSE abc", Command{Verb: VerbClose, Handle: "abc"}},
		{"list", Command{Verb: VerbList}},
		{"PING", Command{Verb: VerbPing}},
		{"quit", Command{Verb: VerbQuit}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		"FETCH",
		"OPEN a b",
		"READ abc",
		"READ abc zero",
		"READ abc 0",
		"READ abc -4",
		"CLOSE",
		"STAT a b",
		"PING now",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := ParseCommand(line)
			require.Error(t, err)
			assert.Equal(t, CodeBadRequest, ncerr.ProtocolCode(err))
		})
	}
}

func TestCommand_String(t *testing.T) {
	for _, cmd := range []Command{
		{Verb: VerbOpen, Name: "cookie"},
		{Verb: VerbRead, Handle: "h1", Size: 4},
		{Verb: VerbStat, Handle: "h1"},
		{Verb: VerbClose, Handle: "h1"},
		{Verb: VerbList},
		{Verb: VerbPing},
		{Verb: VerbQuit},
	} {
		got, err := ParseCommand(cmd.String())
		require.NoError(t, err, cmd.String())
		assert.Equal(t, cmd, got)
	}

	assert.Equal(t, "OPEN", Command{Verb: VerbOpen}.String())
}
