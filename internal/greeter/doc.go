// Package greeter implements a deliberately unreliable greeting service.
//
// Every greeting waits a randomly drawn delay of up to ten seconds before
// answering, so calls routinely outlive any reasonable time limit, and a
// missing name fails immediately. The delay source is injectable, which is
// what the demo endpoint and the tests rely on.
package greeter
