/*
Package vault implements a share based asset pool that is aware of the
salary liability.

Vault assets are the pool account balance reduced by the total salary
accrued but not yet paid out. The share price reflects that liability, so
depositors are never diluted by unpaid compensation. A deposit that only
covers the liability mints no shares, it merely advances funds for salary
obligations. The gross contribution of every holder is tracked separately
from shares, which makes the unvested part of a contribution available as an
investment weight for income distribution.
*/
package vault
