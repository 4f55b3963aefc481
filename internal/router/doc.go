// Package router decides which retrieval strategy answers a question.
//
// Strategies are tried in a fixed precedence order and the first one that
// returns something wins:
//
//  1. exact event name
//  2. count (year and fee filter; zero is an answer)
//  3. report (year and fee filter, date ascending, uncapped)
//  4. month and year range
//  5. person fragment in coordinators or speakers
//  6. delivery mode
//  7. domain
//  8. hybrid ranking under date and fee filters
//  9. vector-only nearest events
//
// Steps 4 to 7 cannot express a fee ceiling and are skipped when the
// question has one. A failing strategy is logged and treated like an empty
// one. When nothing answers the Result has StrategyNone.
//
// Results are cached by normalized question for a TTL; index writes must
// call Invalidate.
package router
