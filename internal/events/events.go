package events

// OnSizesReconciled is called after a child's size assignments have been
// replaced and committed. labels[0] is the primary size.
// services will call this if it's set.
var OnSizesReconciled func(childID uint, labels []string)

// OnIntakeSubmitted is called after an intake submission commits.
// newAccount is true when the parent account was provisioned by it.
var OnIntakeSubmitted func(userID uint, childIDs []uint, newAccount bool)
