package bot

import (
	"strings"

	"pizzaria-telegram/catalog"
)

// Command is a recognized slash command.
type Command int

const (
	CmdUnknown Command = iota

	// customer
	CmdStart
	CmdMenu
	CmdFlavor
	CmdMyOrders
	CmdInfo
	CmdHelp
	CmdQuit

	// admin
	CmdOrders
	CmdOrder
	CmdSearch
	CmdStatus
	CmdCancel
	CmdAnnounce
	CmdAnnouncements
	CmdDeactivate
	CmdReport
	CmdBackup
	CmdReconnect
)

var commandNames = map[string]Command{
	"start":       CmdStart,
	"menu":        CmdMenu,
	"meuspedidos": CmdMyOrders,
	"info":        CmdInfo,
	"ajuda":       CmdHelp,
	"help":        CmdHelp,
	"pedidos":     CmdOrders,
	"pedido":      CmdOrder,
	"buscar":      CmdSearch,
	"status":      CmdStatus,
	"cancelar":    CmdCancel,
	"aviso":       CmdAnnounce,
	"avisos":      CmdAnnouncements,
	"desativar":   CmdDeactivate,
	"relatorio":   CmdReport,
	"backup":      CmdBackup,
	"reconectar":  CmdReconnect,
	"sair":        CmdQuit,
}

// adminCommands are gated by requireAdmin.
var adminCommands = map[Command]bool{
	CmdOrders: true, CmdOrder: true, CmdSearch: true, CmdStatus: true, CmdCancel: true,
	CmdAnnounce: true, CmdAnnouncements: true, CmdDeactivate: true, CmdReport: true,
	CmdBackup: true, CmdReconnect: true,
}

// ParseCommand splits "/name@bot args" into its command and trimmed args.
// Flavor commands ("/calabresa") return CmdFlavor with the flavor key as args.
func ParseCommand(text string) (Command, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return CmdUnknown, ""
	}
	name, args, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	name = strings.ToLower(name)
	args = strings.TrimSpace(args)
	if cmd, ok := commandNames[name]; ok {
		return cmd, args
	}
	if _, ok := catalog.LookupFlavor(name); ok {
		return CmdFlavor, name
	}
	return CmdUnknown, args
}
