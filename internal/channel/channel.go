// Package channel abstracts the peripheral-driver transport through which
// scadad reaches an OPC UA server's address space.
//
// The driver exposes no request/response API. A browse command is a
// fire-and-forget write; the reply arrives later on the driver's shared
// notification structure, correlated only by an opaque token. Subscribers
// receive every reply published for a connection and must filter by token
// themselves.
package channel

import "context"

// RawNode is the driver-side shape of one address-space entry, before any
// class interpretation is applied.
type RawNode struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Class       string `json:"class"`
}

// Command is the browse command written to a peripheral driver.
type Command struct {
	Token  string `json:"token"`
	Target string `json:"target"`
	Depth  int    `json:"depth"`
	Filter string `json:"filter"`
}

// Reply is the shared reply structure published by a driver. The token
// identifies which command the nodes belong to.
type Reply struct {
	Token string    `json:"token"`
	Nodes []RawNode `json:"nodes"`
}

// Handler consumes driver replies for one connection.
type Handler func(Reply)

// Subscription is a live reply listener. Unsubscribe must be safe to call
// more than once.
type Subscription interface {
	Unsubscribe() error
}

// Channel is the transport to the peripheral-driver layer.
type Channel interface {
	// SendBrowseCommand writes a browse command for connectionID. The reply,
	// if any, arrives through subscribers registered with Subscribe.
	SendBrowseCommand(ctx context.Context, connectionID, token, target string, depth int, filter string) error

	// Subscribe registers a handler invoked for every reply published on
	// connectionID's channel.
	Subscribe(connectionID string, h Handler) (Subscription, error)
}
