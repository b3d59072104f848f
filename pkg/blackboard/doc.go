// Package blackboard defines the Democrite blackboard data model and its Redis schema.
//
// A blackboard ("board") is a named, templated shared data space. Records pushed to a
// board carry metadata (uid, logical type, status, timestamps) and an optional payload.
// Writers never mutate a board directly: every change is expressed as a Command that the
// owning board executes in order, producing Events that downstream controllers react to.
//
// Key types:
//   - BoardID: immutable identity of one board (uid + name + template key)
//   - RecordMetadata / DataRecord: what is stored
//   - Command: sealed set of instructions (add, prepare, remove, decommission,
//     change status/metadata, trigger sequence/signal, reject)
//   - Event / EventBook: facts emitted by successful commands
//   - Issue: pre-insert validation problems that a storage controller may resolve
//   - Template: frozen behavioural rules copied into a board when it is built
//
// Redis keys and channels are namespaced so several deployments can share one server:
//
//	democrite:{namespace}:board:{uid}:state
//	democrite:{namespace}:board:{uid}:events
//	democrite:{namespace}:registry
//	democrite:{namespace}:board:{uid}:repo:{repository}:record:{uid}
package blackboard
