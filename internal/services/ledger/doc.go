/*
Package ledger owns every write to the transaction ledger and the wallet
balance cached next to it.

Writes happen inside an atomic unit:

	err := svc.Atomic(ctx, func(u *ledger.Unit) error {
	    _, err := u.Apply(ctx, ledger.Entry{
	        UserID:       userID,
	        Amount:       amount,
	        Direction:    models.DirectionCredit,
	        IncomeSource: models.SourceDailyProfit,
	        Status:       models.StatusCompleted,
	    })
	    return err
	})

Wallet effects of a new row:

  - COMPLETED credit adds the amount
  - COMPLETED debit subtracts it
  - PENDING debit written with Reserve subtracts it immediately
  - any other PENDING row leaves the balance alone

Status transitions move PENDING rows to COMPLETED or REJECTED and settle the
balance for whatever was not applied at insert time. A rejected reserved
debit is restored. Nothing else may change status.

After commit the unit invalidates the cached wallets it touched and reports
metrics. A failed unit leaves no trace.
*/
package ledger
