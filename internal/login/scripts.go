package login

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed scripts/*.js
var scriptFiles embed.FS

const valuePlaceholder = "__VALUE__"

// Script names, one per file under scripts/.
const (
	scriptPollDice       = "poll_dice_button"
	scriptClickDice      = "click_dice_button"
	scriptPollIdentifier = "poll_identifier"
	scriptSetIdentifier  = "set_identifier"
	scriptPollPassword   = "poll_password"
	scriptSetPassword    = "set_password"
	scriptSessionStorage = "session_storage"
)

// Results returned by the set_identifier and set_password scripts.
const (
	resultSetAndSubmitted = "set_and_submitted"
	resultSetAndClicked   = "set_and_clicked"
	resultSetOnly         = "set_only"
)

func loadScript(name string) string {
	data, err := scriptFiles.ReadFile("scripts/" + name + ".js")
	if err != nil {
		panic(fmt.Sprintf("missing embedded script %s: %v", name, err))
	}
	return string(data)
}

// scriptWithValue embeds value as a JSON string literal so quotes and backslashes in credentials
// cannot terminate the literal.
func scriptWithValue(name, value string) (string, error) {
	lit, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return strings.Replace(loadScript(name), valuePlaceholder, string(lit), 1), nil
}
