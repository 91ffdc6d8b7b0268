package models

import "strings"

// CommandType enumerates the text commands accepted over WhatsApp.
type CommandType string

const (
	CommandExpense CommandType = "expense"
	CommandRevenue CommandType = "revenue"
	CommandStock   CommandType = "stock"
	CommandSummary CommandType = "summary"
	CommandMonth   CommandType = "month"
	CommandLow     CommandType = "low"
	CommandHelp    CommandType = "help"
	CommandUnknown CommandType = "unknown"
)

var commandAliases = map[string]CommandType{
	"expense":  CommandExpense,
	"expenses": CommandExpense,
	"cost":     CommandExpense,
	"revenue":  CommandRevenue,
	"sale":     CommandRevenue,
	"sales":    CommandRevenue,
	"stock":    CommandStock,
	"summary":  CommandSummary,
	"today":    CommandSummary,
	"month":    CommandMonth,
	"pnl":      CommandMonth,
	"low":      CommandLow,
	"help":     CommandHelp,
}

// Command represents a parsed instruction extracted from WhatsApp text.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ParseCommand derives a Command from free-form text. The command word is
// case-insensitive; arguments keep their original case.
func ParseCommand(message string) Command {
	cmd := Command{Type: CommandUnknown, Raw: message}

	tokens := strings.Fields(strings.TrimSpace(message))
	if len(tokens) == 0 {
		return cmd
	}

	head := strings.ToLower(strings.TrimPrefix(tokens[0], "/"))
	if t, ok := commandAliases[head]; ok {
		cmd.Type = t
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}
