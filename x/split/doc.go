/*
Package split implements pro rata income distribution.

Income collected on the pool account belongs to the distribution token
holders in proportion to their balance. Claims are lazy, each holder keeps a
snapshot of the cumulative income taken at its last settlement and a claim
pays out only the difference. Tokens can be transferred, which settles both
sides first so that income accrued under the old balances is not moved with
the tokens.

One designated holder, the investment address, does not claim directly.
Its income share is instead distributed among the holders weighted by the
capital they have advanced to the vault.
*/
package split
