// Package dispatch runs the actions of the rules that match a request.
//
// A dispatch walks a fixed sequence of phases:
//
//	Start → RulesSelected → ActionsExpanded → InstancesBuilt → HandlersInvoked → Done
//
// Actions run in rule order, then in action order within a rule. Each
// instance is built lazily the first time an action needs it and reused by
// every later action of the same request. A handler is invoked once per
// action with the action's built instances in declared order.
//
// Failures are scoped to the action that produced them. An unknown handler
// or instance and an instance that fails to build skip the action and are
// recorded in the Result; sibling actions still run. Invoker errors are
// recorded and never retried.
//
// The context is checked before every action. Once it is done the remaining
// actions are counted as skipped and Result.Cancelled is set. A handler call
// that is already in flight is not interrupted by the dispatcher.
package dispatch
