// Package corral and its sub-packages implement the backend service of a group-chat DeFi application.
/*
corral provides one service (package server, started from cmd/corral) exposing an HTTP RESTful API with three
concerns:

1) transaction relay: unsigned contract calls are validated and submitted through an external transaction-execution
engine (package lib/engine) which holds the backend wallet keys. The service polls the engine until the transaction
is mined or declared failed and replies the transaction hash.

2) swap payloads: members of a group pool funds in an on-chain treasury. The service quotes a swap against an
external quote service (package lib/swap), prepends an ERC-20 approval when the live allowance falls short
(package lib/chain) and assembles the multi-call intent as EIP-712 typed data signed by the engine's backend wallet
(package lib/payload). Buy intents enter a pooled position; exit intents sell a member's proportional share back
into the base currency.

3) chat state: user profiles, groups, memberships and messages are persisted in PostgreSQL (package lib/store).
Creating a group deploys a space contract through a factory, registers it with the protocol contract and records the
contract addresses announced by the registration events. Posted messages are fanned out to the group's websocket
room in real time.

The error taxonomy surfaced by the API lives in package lib/apierr; configuration follows lib/config (JSON file plus
CRL_ environment overrides). The service can be monitored via a Prometheus API by setting the flag "-m" at startup.
*/
package corral
