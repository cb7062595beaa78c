package input

import (
	"fmt"
	"strings"
)

// keyDef carries the platform spellings of one named key.
type keyDef struct {
	x11 string // xdotool keysym
	mac string // cliclick kp: name
}

var keyTable = map[string]keyDef{
	"enter":       {"Return", "return"},
	"tab":         {"Tab", "tab"},
	"escape":      {"Escape", "esc"},
	"backspace":   {"BackSpace", "delete"},
	"space":       {"space", "space"},
	"delete":      {"Delete", "fwd-delete"},
	"home":        {"Home", "home"},
	"end":         {"End", "end"},
	"page_up":     {"Page_Up", "page-up"},
	"page_down":   {"Page_Down", "page-down"},
	"arrow_up":    {"Up", "arrow-up"},
	"arrow_down":  {"Down", "arrow-down"},
	"arrow_left":  {"Left", "arrow-left"},
	"arrow_right": {"Right", "arrow-right"},
}

var modifierTable = map[string]keyDef{
	"ctrl":  {"ctrl", "ctrl"},
	"alt":   {"alt", "alt"},
	"shift": {"shift", "shift"},
	"cmd":   {"super", "cmd"},
	"meta":  {"super", "cmd"},
}

// IsValidKey reports whether name is a recognized key or modifier combo
// (e.g. "enter", "ctrl+c", "cmd+shift+arrow_left").
func IsValidKey(name string) bool {
	_, _, err := splitCombo(name)
	return err == nil
}

// splitCombo parses "mod+mod+key" into modifiers and the final key.
// The final key must be a named key or a single printable character.
func splitCombo(name string) (mods []string, key string, err error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, "", fmt.Errorf("empty key")
	}

	parts := strings.Split(name, "+")
	key = parts[len(parts)-1]
	mods = parts[:len(parts)-1]

	for _, mod := range mods {
		if _, ok := modifierTable[mod]; !ok {
			return nil, "", fmt.Errorf("unknown modifier %q", mod)
		}
	}

	if _, ok := keyTable[key]; ok {
		return mods, key, nil
	}
	// Plain characters are only meaningful inside a combo; on their own
	// they belong to a type action.
	if len(mods) > 0 && len(key) == 1 && key[0] > ' ' && key[0] < 0x7f {
		return mods, key, nil
	}
	return nil, "", fmt.Errorf("unknown key %q", key)
}

// x11Key renders a key name as an xdotool key argument.
func x11Key(name string) (string, error) {
	mods, key, err := splitCombo(name)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(mods)+1)
	for _, mod := range mods {
		parts = append(parts, modifierTable[mod].x11)
	}
	if def, ok := keyTable[key]; ok {
		parts = append(parts, def.x11)
	} else {
		parts = append(parts, key)
	}
	return strings.Join(parts, "+"), nil
}

// macKeyArgs renders a key name as a cliclick command sequence.
func macKeyArgs(name string) ([]string, error) {
	mods, key, err := splitCombo(name)
	if err != nil {
		return nil, err
	}

	var press string
	if def, ok := keyTable[key]; ok {
		press = "kp:" + def.mac
	} else {
		press = "t:" + key
	}

	if len(mods) == 0 {
		return []string{press}, nil
	}

	macMods := make([]string, 0, len(mods))
	for _, mod := range mods {
		macMods = append(macMods, modifierTable[mod].mac)
	}
	modList := strings.Join(macMods, ",")
	return []string{"kd:" + modList, press, "ku:" + modList}, nil
}
