package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
)

const defaultVHost = "/"

// Published is one message accepted by Broker.Publish.
type Published struct {
	Exchange   string
	RoutingKey string
	Payload    []byte
}

type binding struct {
	exchange   string
	queue      string
	routingKey string
}

// Broker is an in-memory provisioner.BrokerGateway.
// Bindings form a set, so binding twice leaves one binding behind.
type Broker struct {
	mu        sync.Mutex
	users     map[string]string // user id → password
	queues    map[string]string // queue → owner
	exchanges map[string]string // exchange → owner
	bindings  map[binding]struct{}
	read      map[string]map[string]struct{} // user → readable targets
	write     map[string]map[string]struct{} // user → writable targets
	published []Published
	calls     []string
	failures  map[string]error
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		users:     make(map[string]string),
		queues:    make(map[string]string),
		exchanges: make(map[string]string),
		bindings:  make(map[binding]struct{}),
		read:      make(map[string]map[string]struct{}),
		write:     make(map[string]map[string]struct{}),
		failures:  make(map[string]error),
	}
}

// FailOn makes every later call of method return err. A nil err clears the failure.
func (b *Broker) FailOn(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, method)
		return
	}
	b.failures[method] = err
}

// Calls returns the names of the methods called so far, in order.
func (b *Broker) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// CallCount returns the number of gateway calls made so far.
func (b *Broker) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// HasQueue reports whether queue exists.
func (b *Broker) HasQueue(queue string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.queues[queue]
	return ok
}

// HasExchange reports whether exchange exists.
func (b *Broker) HasExchange(exchange string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.exchanges[exchange]
	return ok
}

// HasBinding reports whether queue is bound to exchange with routingKey.
func (b *Broker) HasBinding(exchange, queue, routingKey string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.bindings[binding{exchange, queue, routingKey}]
	return ok
}

// BindingCount returns the number of distinct bindings.
func (b *Broker) BindingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bindings)
}

// CanRead reports whether userID holds a read grant on target.
func (b *Broker) CanRead(userID, target string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.read[userID][target]
	return ok
}

// CanWrite reports whether userID holds a write grant on target.
func (b *Broker) CanWrite(userID, target string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.write[userID][target]
	return ok
}

// Published returns every message published so far.
func (b *Broker) Published() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Published(nil), b.published...)
}

// AddQueue creates queue without recording a gateway call.
func (b *Broker) AddQueue(queue, owner string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[queue] = owner
}

// AddExchange creates exchange without recording a gateway call.
// An empty owner stands for an exchange declared outside the gateway.
func (b *Broker) AddExchange(exchange, owner string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exchanges[exchange] = owner
}

// RegisterQueue implements provisioner.BrokerGateway.
func (b *Broker) RegisterQueue(_ context.Context, userID, queue string) (provisioner.QueueHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("RegisterQueue"); err != nil {
		return provisioner.QueueHandle{}, err
	}

	if _, ok := b.queues[queue]; ok {
		return provisioner.QueueHandle{}, provisioner.NewError(provisioner.ErrCodeConflict,
			fmt.Sprintf("queue already exists: %s", queue))
	}
	password := b.ensureUser(userID)
	b.queues[queue] = userID

	return provisioner.QueueHandle{Name: queue, UserID: userID, Password: password, VHost: defaultVHost}, nil
}

// DeleteQueue implements provisioner.BrokerGateway.
func (b *Broker) DeleteQueue(_ context.Context, queue, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("DeleteQueue"); err != nil {
		return err
	}

	if _, ok := b.queues[queue]; !ok {
		return provisioner.NewError(provisioner.ErrCodeNotFound, fmt.Sprintf("queue not found: %s", queue))
	}
	delete(b.queues, queue)
	for bd := range b.bindings {
		if bd.queue == queue {
			delete(b.bindings, bd)
		}
	}
	return nil
}

// RegisterExchange implements provisioner.BrokerGateway.
func (b *Broker) RegisterExchange(_ context.Context, userID, exchange string) (provisioner.ExchangeHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("RegisterExchange"); err != nil {
		return provisioner.ExchangeHandle{}, err
	}

	if _, ok := b.exchanges[exchange]; ok {
		return provisioner.ExchangeHandle{}, provisioner.NewError(provisioner.ErrCodeConflict,
			fmt.Sprintf("exchange already exists: %s", exchange))
	}
	password := b.ensureUser(userID)
	b.exchanges[exchange] = userID

	return provisioner.ExchangeHandle{Name: exchange, UserID: userID, Password: password, VHost: defaultVHost}, nil
}

// DeleteExchange implements provisioner.BrokerGateway.
func (b *Broker) DeleteExchange(_ context.Context, exchange, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("DeleteExchange"); err != nil {
		return err
	}

	if _, ok := b.exchanges[exchange]; !ok {
		return provisioner.NewError(provisioner.ErrCodeNotFound, fmt.Sprintf("exchange not found: %s", exchange))
	}
	delete(b.exchanges, exchange)
	for bd := range b.bindings {
		if bd.exchange == exchange {
			delete(b.bindings, bd)
		}
	}
	return nil
}

// Bind implements provisioner.BrokerGateway.
// Neither side has to exist; the fake only records the binding.
func (b *Broker) Bind(_ context.Context, exchange, queue, routingKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("Bind"); err != nil {
		return err
	}

	b.bindings[binding{exchange, queue, routingKey}] = struct{}{}
	return nil
}

// GrantRead implements provisioner.BrokerGateway.
func (b *Broker) GrantRead(_ context.Context, userID, target string) error {
	return b.grant("GrantRead", b.read, userID, target)
}

// GrantWrite implements provisioner.BrokerGateway.
func (b *Broker) GrantWrite(_ context.Context, userID, target string) error {
	return b.grant("GrantWrite", b.write, userID, target)
}

// RevokeRead implements provisioner.BrokerGateway.
func (b *Broker) RevokeRead(_ context.Context, userID, target string) error {
	return b.revoke("RevokeRead", b.read, userID, target)
}

// RevokeWrite implements provisioner.BrokerGateway.
func (b *Broker) RevokeWrite(_ context.Context, userID, target string) error {
	return b.revoke("RevokeWrite", b.write, userID, target)
}

// ListQueueSubscribers implements provisioner.BrokerGateway.
func (b *Broker) ListQueueSubscribers(_ context.Context, queue string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("ListQueueSubscribers"); err != nil {
		return nil, err
	}

	if _, ok := b.queues[queue]; !ok {
		return nil, provisioner.NewError(provisioner.ErrCodeNotFound, fmt.Sprintf("queue not found: %s", queue))
	}
	keys := []string{}
	for bd := range b.bindings {
		if bd.queue == queue {
			keys = append(keys, bd.routingKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ListExchangeSubscribers implements provisioner.BrokerGateway.
func (b *Broker) ListExchangeSubscribers(_ context.Context, exchange string) (map[string][]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("ListExchangeSubscribers"); err != nil {
		return nil, err
	}

	if _, ok := b.exchanges[exchange]; !ok {
		return nil, provisioner.NewError(provisioner.ErrCodeNotFound, fmt.Sprintf("exchange not found: %s", exchange))
	}
	out := make(map[string][]string)
	for bd := range b.bindings {
		if bd.exchange == exchange {
			out[bd.queue] = append(out[bd.queue], bd.routingKey)
		}
	}
	for q := range out {
		sort.Strings(out[q])
	}
	return out, nil
}

// Publish implements provisioner.BrokerGateway.
func (b *Broker) Publish(_ context.Context, exchange, routingKey string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("Publish"); err != nil {
		return err
	}

	if _, ok := b.exchanges[exchange]; !ok {
		return provisioner.NewError(provisioner.ErrCodeNotFound, fmt.Sprintf("exchange not found: %s", exchange))
	}
	b.published = append(b.published, Published{
		Exchange:   exchange,
		RoutingKey: routingKey,
		Payload:    append([]byte(nil), payload...),
	})
	return nil
}

// ListQueues implements provisioner.BrokerGateway.
func (b *Broker) ListQueues(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("ListQueues"); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(b.queues))
	for q := range b.queues {
		names = append(names, q)
	}
	sort.Strings(names)
	return names, nil
}

// ListExchanges implements provisioner.BrokerGateway.
func (b *Broker) ListExchanges(_ context.Context) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("ListExchanges"); err != nil {
		return nil, err
	}

	owned := make(map[string]string, len(b.exchanges))
	for x, owner := range b.exchanges {
		if owner != "" {
			owned[x] = owner
		}
	}
	return owned, nil
}

// enter records a call and returns the injected failure, if any. Caller holds mu.
func (b *Broker) enter(method string) error {
	b.calls = append(b.calls, method)
	return b.failures[method]
}

// ensureUser creates userID with a fresh password if absent. Caller holds mu.
// Returns the password only when the user was created.
func (b *Broker) ensureUser(userID string) string {
	if _, ok := b.users[userID]; ok {
		return ""
	}
	password := uuid.NewString()
	b.users[userID] = password
	return password
}

func (b *Broker) grant(method string, perms map[string]map[string]struct{}, userID, target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(method); err != nil {
		return err
	}

	if perms[userID] == nil {
		perms[userID] = make(map[string]struct{})
	}
	perms[userID][target] = struct{}{}
	return nil
}

func (b *Broker) revoke(method string, perms map[string]map[string]struct{}, userID, target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(method); err != nil {
		return err
	}

	delete(perms[userID], target)
	return nil
}

var _ provisioner.BrokerGateway = (*Broker)(nil)
