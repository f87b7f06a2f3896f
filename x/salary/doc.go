/*
Package salary implements streaming compensation.

Each beneficiary account accrues salary continuously, one per second rate
tick at a time, and can release the accrued amount at any moment. Salary
rate changes must be scheduled by the admin and can be committed by anyone
once the configured waiting period has passed. A global ledger aggregates
the total rate and the total accrued but unreleased amount, so that the
overall salary liability can be computed in constant time.
*/
package salary
