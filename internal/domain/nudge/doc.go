// Package nudge contains the progress-nudge decision engine.
//
// For each (student, course) the engine reads a progress Snapshot, the Ledger
// of messages already sent and the current date, and returns a single
// Decision: nothing, a silent ladder step, a message, or a log-only report.
//
// Decision order:
//
//	welcome (first course, once)
//	lockout (final not passed in time)
//	urgency classification (first unmet requirement + lateness score)
//	cadence (weekdays since the latest delivered message)
//	late:    the objective ladder of the first unmet requirement
//	on time: due-date proximity reminders, then grade nudges
//
// Every ladder follows one rule: walk the rungs of the tier chosen by attempt
// count and pick the first rung whose codes have never been sent. Silent rungs
// are recorded in the ledger like content rungs so they are consumed exactly
// once.
//
// Example:
//
//	engine, err := nudge.NewEngine(nudge.DefaultRules())
//	if err != nil {
//	    return err
//	}
//	decision, err := engine.Evaluate(snapshot, ledger, today)
//	if err != nil {
//	    // per-student failure; continue with the next student
//	}
//	if decision.Records() {
//	    // deliver (content only), then append decision.Entry(today)
//	}
package nudge
