// Package rabbitmq implements provisioner.BrokerGateway against a RabbitMQ cluster.
//
// Topology and permissions go through the management HTTP API
// (github.com/michaelklishin/rabbit-hole/v2); data batches are published over
// AMQP 0-9-1 (github.com/rabbitmq/amqp091-go).
//
// Broker accounts are created on first use with a generated password, which is
// returned once in the QueueHandle or ExchangeHandle of the call that created it.
// Read and write grants are kept as anchored regular-expression alternations in the
// account's vhost permissions, one alternative per queue or exchange.
package rabbitmq
