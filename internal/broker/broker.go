// Package broker fans broadcast events out to live client sessions.
//
// The registry of subscribers is owned by a single goroutine draining a
// command channel, so registry mutations need no lock and broadcasts to one
// scope are delivered in submission order. Delivery to an individual
// subscriber is fire-and-forget: a subscriber that cannot accept an event is
// logged and skipped, never waited on.
package broker

import (
	"log"

	"barstock/internal/db"
	"barstock/internal/market"
)

// Scope is a broadcast partition: one per game, plus the admin-wide scope.
type Scope struct {
	GameID uint
	Admin  bool
}

func GameScope(gameID uint) Scope { return Scope{GameID: gameID} }

var AdminScope = Scope{Admin: true}

// Subscriber is a live client connection as the broker sees it. Deliver must
// not block; it reports false when the event could not be accepted.
type Subscriber interface {
	ID() string
	User() UserInfo
	Deliver(Event) bool
}

type UserInfo struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type connectCmd struct {
	scope Scope
	sub   Subscriber
}

type disconnectCmd struct {
	scope Scope
	id    string
}

type broadcastCmd struct {
	scope Scope
	event Event
}

type countCmd struct {
	scope Scope
	reply chan int
}

type activeGamesCmd struct {
	reply chan map[uint]int
}

type connectedUsersCmd struct {
	reply chan []UserInfo
}

type Broker struct {
	commands chan any
	done     chan struct{}
}

func New() *Broker {
	b := &Broker{
		commands: make(chan any, 64),
		done:     make(chan struct{}),
	}
	go b.loop()
	return b
}

// Close stops the registry goroutine. Pending commands may be dropped.
func (b *Broker) Close() {
	close(b.done)
}

func (b *Broker) send(cmd any) {
	select {
	case b.commands <- cmd:
	case <-b.done:
	}
}

// Connect registers the subscriber under the scope and announces the new
// connection count to that scope.
func (b *Broker) Connect(scope Scope, sub Subscriber) {
	b.send(connectCmd{scope: scope, sub: sub})
}

// Disconnect removes the subscriber. Disconnecting an unknown or already
// removed id is a no-op: no broadcast, no error.
func (b *Broker) Disconnect(scope Scope, id string) {
	b.send(disconnectCmd{scope: scope, id: id})
}

// Broadcast delivers the event to every live subscriber of the scope.
func (b *Broker) Broadcast(scope Scope, event Event) {
	b.send(broadcastCmd{scope: scope, event: event})
}

// Count reports the number of live subscribers in the scope.
func (b *Broker) Count(scope Scope) int {
	reply := make(chan int, 1)
	select {
	case b.commands <- countCmd{scope: scope, reply: reply}:
	case <-b.done:
		return 0
	}
	select {
	case count := <-reply:
		return count
	case <-b.done:
		return 0
	}
}

// ActiveGames reports connected-subscriber counts per game with at least one
// live connection.
func (b *Broker) ActiveGames() map[uint]int {
	reply := make(chan map[uint]int, 1)
	select {
	case b.commands <- activeGamesCmd{reply: reply}:
	case <-b.done:
		return nil
	}
	select {
	case games := <-reply:
		return games
	case <-b.done:
		return nil
	}
}

// ConnectedUsers lists every user with a live connection, across all scopes.
func (b *Broker) ConnectedUsers() []UserInfo {
	reply := make(chan []UserInfo, 1)
	select {
	case b.commands <- connectedUsersCmd{reply: reply}:
	case <-b.done:
		return nil
	}
	select {
	case users := <-reply:
		return users
	case <-b.done:
		return nil
	}
}

// MarketTicked forwards scheduler tick results to the game's scope.
func (b *Broker) MarketTicked(game db.Game, result market.TickResult) {
	b.Broadcast(GameScope(game.ID), PriceUpdate(game.ID, result))
}

type registry struct {
	games map[uint]map[string]Subscriber
	admin map[string]Subscriber
}

func (r *registry) scopeSet(scope Scope, create bool) map[string]Subscriber {
	if scope.Admin {
		return r.admin
	}
	set := r.games[scope.GameID]
	if set == nil && create {
		set = make(map[string]Subscriber)
		r.games[scope.GameID] = set
	}
	return set
}

func (b *Broker) loop() {
	reg := &registry{
		games: make(map[uint]map[string]Subscriber),
		admin: make(map[string]Subscriber),
	}
	for {
		select {
		case <-b.done:
			return
		case raw := <-b.commands:
			switch cmd := raw.(type) {
			case connectCmd:
				set := reg.scopeSet(cmd.scope, true)
				set[cmd.sub.ID()] = cmd.sub
				log.Printf("broker connect session=%s user=%s admin=%t game_id=%d count=%d",
					cmd.sub.ID(), cmd.sub.User().Name, cmd.scope.Admin, cmd.scope.GameID, len(set))
				deliver(set, ConnectionCountChanged(len(set)))
			case disconnectCmd:
				set := reg.scopeSet(cmd.scope, false)
				if set == nil {
					continue
				}
				if _, ok := set[cmd.id]; !ok {
					continue
				}
				delete(set, cmd.id)
				if !cmd.scope.Admin && len(set) == 0 {
					delete(reg.games, cmd.scope.GameID)
				}
				log.Printf("broker disconnect session=%s game_id=%d count=%d", cmd.id, cmd.scope.GameID, len(set))
				deliver(set, ConnectionCountChanged(len(set)))
			case broadcastCmd:
				deliver(reg.scopeSet(cmd.scope, false), cmd.event)
			case countCmd:
				cmd.reply <- len(reg.scopeSet(cmd.scope, false))
			case activeGamesCmd:
				games := make(map[uint]int, len(reg.games))
				for gameID, set := range reg.games {
					games[gameID] = len(set)
				}
				cmd.reply <- games
			case connectedUsersCmd:
				seen := make(map[uint]struct{})
				users := make([]UserInfo, 0)
				for _, set := range reg.games {
					for _, sub := range set {
						if _, ok := seen[sub.User().ID]; ok {
							continue
						}
						seen[sub.User().ID] = struct{}{}
						users = append(users, sub.User())
					}
				}
				for _, sub := range reg.admin {
					if _, ok := seen[sub.User().ID]; ok {
						continue
					}
					seen[sub.User().ID] = struct{}{}
					users = append(users, sub.User())
				}
				cmd.reply <- users
			}
		}
	}
}

func deliver(set map[string]Subscriber, event Event) {
	for id, sub := range set {
		if !sub.Deliver(event) {
			log.Printf("broker dropped event session=%s type=%s (subscriber not keeping up)", id, event.Type)
		}
	}
}
