package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle  key.Binding
	Stop    key.Binding
	Back    key.Binding
	Forward key.Binding
	Slower  key.Binding
	Faster  key.Binding
	JumpTo  key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Toggle:  key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
		Stop:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Back:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "back")),
		Forward: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "forward")),
		Slower:  key.NewBinding(key.WithKeys("-", "down", "j"), key.WithHelp("-", "slower")),
		Faster:  key.NewBinding(key.WithKeys("+", "=", "up", "k"), key.WithHelp("+", "faster")),
		JumpTo:  key.NewBinding(key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("0-9", "jump to 0-90%")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Back, k.Forward, k.Slower, k.Faster, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Stop, k.Refresh},
		{k.Back, k.Forward, k.JumpTo},
		{k.Slower, k.Faster},
		{k.Help, k.Quit},
	}
}
