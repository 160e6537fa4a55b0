// Package agent implements the agent framework and the seven concrete
// agents, one per Appliance trigger state, plus the token ingress agent.
// Each agent is bound to exactly one FSM trigger state: Jobs queries the
// store for artifacts sitting in that state, Run drains the agent's work
// channel and talks to the provider gateway, and Callbacks registers the
// message handlers that turn a gateway reply into a committed Touch.
//
// Mirroring the teacher's worker package, each agent lives in its own
// file named after the state it serves; agent.go holds the shared
// contract every agent implements.
package agent
