package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Scan       key.Binding
	Up         key.Binding
	Down       key.Binding
	Connect    key.Binding
	Switch     key.Binding
	Disconnect key.Binding
	Rename     key.Binding
	Power      key.Binding
	Color      key.Binding
	Dimmer     key.Binding
	Brighter   key.Binding
	NextAnim   key.Binding
	PrevAnim   key.Binding
	Stop       key.Binding
	Solid      key.Binding
	Cycle      key.Binding
	Eye        key.Binding
	Pupil      key.Binding
	Heart      key.Binding
	Visualizer key.Binding
	Clock      key.Binding
	Heart1     key.Binding
	Heart2     key.Binding
	ClockColor key.Binding
	Palette    key.Binding
	NoPalette  key.Binding
	SlowerRand key.Binding
	FasterRand key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Scan:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "scan")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Connect:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
		Switch:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next cloud")),
		Disconnect: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "disconnect")),
		Rename:     key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "rename")),
		Power:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "power")),
		Color:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "color")),
		Dimmer:     key.NewBinding(key.WithKeys("["), key.WithHelp("[", "dimmer")),
		Brighter:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "brighter")),
		NextAnim:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "next animation")),
		PrevAnim:   key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "prev animation")),
		Stop:       key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "stop animation")),
		Solid:      key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "solid")),
		Cycle:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "color cycle")),
		Eye:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "eye color")),
		Pupil:      key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "pupil color")),
		Heart:      key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "heart")),
		Visualizer: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "heart-eye")),
		Clock:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "clock")),
		Heart1:     key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "heart color 1")),
		Heart2:     key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "heart color 2")),
		ClockColor: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "clock color")),
		Palette:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next palette")),
		NoPalette:  key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "palette off")),
		SlowerRand: key.NewBinding(key.WithKeys("+"), key.WithHelp("+", "random slower")),
		FasterRand: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "random faster")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Scan, k.Connect, k.Switch, k.Power, k.Color, k.NextAnim, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Scan, k.Up, k.Down, k.Connect, k.Switch, k.Disconnect, k.Rename},
		{k.Power, k.Color, k.Dimmer, k.Brighter, k.NextAnim, k.PrevAnim, k.Stop, k.Solid, k.Cycle},
		{k.Eye, k.Pupil, k.Heart, k.Visualizer, k.Clock, k.Heart1, k.Heart2, k.ClockColor},
		{k.Palette, k.NoPalette, k.SlowerRand, k.FasterRand, k.Help, k.Quit},
	}
}
