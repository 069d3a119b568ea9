// Package ofx parses OFX/QFX statement downloads into canonical transactions.
package ofx

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
)

// Statement is a parsed OFX document: the source account as reported by the
// institution plus its transactions, already in the canonical sign convention
// (OFX amounts are signed at the source, outflows negative).
type Statement struct {
	Institution  string
	AccountID    string
	AccountType  domain.AccountType
	Transactions []domain.Transaction
}

// Sniff reports whether content looks like an OFX/QFX document. Both the v1
// SGML and v2 XML header markers are recognized.
func Sniff(content []byte) bool {
	head := strings.ToUpper(string(content[:min(len(content), 512)]))
	return strings.Contains(head, "OFXHEADER") ||
		strings.Contains(head, "<?OFX") ||
		strings.Contains(head, "<OFX>")
}

// Parse decodes an OFX/QFX document. Credit card, bank, and investment
// statements are supported; investment statements yield only their cash
// movements (dividends, interest, fees).
func Parse(content []byte) (*Statement, error) {
	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX document (%d bytes): %w", len(content), err)
	}

	switch {
	case len(response.CreditCard) > 0:
		return parseCreditCard(response)
	case len(response.Bank) > 0:
		return parseBank(response)
	case len(response.InvStmt) > 0:
		return parseInvestment(response)
	}
	return nil, fmt.Errorf("no supported statement type found in OFX document (expected credit card, bank, or investment statement)")
}

func parseCreditCard(resp *ofxgo.Response) (*Statement, error) {
	ccStmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected credit card statement type %T", resp.CreditCard[0])
	}

	accountID := ccStmt.CCAcctFrom.AcctID.String()
	if accountID == "" {
		return nil, fmt.Errorf("missing account ID in credit card statement")
	}
	if ccStmt.BankTranList == nil {
		return nil, fmt.Errorf("missing transaction list in credit card statement")
	}

	txns, err := convertTransactions(ccStmt.BankTranList.Transactions, accountID)
	if err != nil {
		return nil, err
	}

	return &Statement{
		Institution:  resp.Signon.Org.String(),
		AccountID:    accountID,
		AccountType:  domain.AccountTypeCredit,
		Transactions: txns,
	}, nil
}

func parseBank(resp *ofxgo.Response) (*Statement, error) {
	bankStmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected bank statement type %T", resp.Bank[0])
	}

	accountID := bankStmt.BankAcctFrom.AcctID.String()
	if accountID == "" {
		return nil, fmt.Errorf("missing account ID in bank statement")
	}
	if bankStmt.BankTranList == nil {
		return nil, fmt.Errorf("missing transaction list in bank statement")
	}

	accountType, err := mapBankAccountType(bankStmt.BankAcctFrom)
	if err != nil {
		return nil, err
	}

	txns, err := convertTransactions(bankStmt.BankTranList.Transactions, accountID)
	if err != nil {
		return nil, err
	}

	return &Statement{
		Institution:  resp.Signon.Org.String(),
		AccountID:    accountID,
		AccountType:  accountType,
		Transactions: txns,
	}, nil
}

func parseInvestment(resp *ofxgo.Response) (*Statement, error) {
	invStmt, ok := resp.InvStmt[0].(*ofxgo.InvStatementResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected investment statement type %T", resp.InvStmt[0])
	}

	accountID := invStmt.InvAcctFrom.AcctID.String()
	if accountID == "" {
		return nil, fmt.Errorf("missing account ID in investment statement")
	}
	if invStmt.InvTranList == nil {
		return nil, fmt.Errorf("missing transaction list in investment statement")
	}

	// Security transactions (BuyStock, SellStock, ReinvestIncome) carry
	// units and per-share prices that the canonical transaction cannot
	// represent, so only cash movements are converted.
	if n := len(invStmt.InvTranList.InvTransactions); n > 0 {
		return nil, fmt.Errorf("investment statement contains %d security transactions, which are not supported; only cash movements (dividends, interest, fees) can be imported", n)
	}

	var txns []domain.Transaction
	for _, invBankTxn := range invStmt.InvTranList.BankTransactions {
		converted, err := convertTransactions(invBankTxn.Transactions, accountID)
		if err != nil {
			return nil, err
		}
		txns = append(txns, converted...)
	}

	return &Statement{
		Institution:  resp.Signon.Org.String(),
		AccountID:    accountID,
		AccountType:  domain.AccountTypeInvestment,
		Transactions: txns,
	}, nil
}

func convertTransactions(ofxTxns []ofxgo.Transaction, accountID string) ([]domain.Transaction, error) {
	txns := make([]domain.Transaction, 0, len(ofxTxns))
	for i, txn := range ofxTxns {
		converted, err := convertTransaction(txn, accountID)
		if err != nil {
			return nil, fmt.Errorf("transaction at index %d: %w", i, err)
		}
		if converted == nil {
			continue
		}
		txns = append(txns, *converted)
	}
	return txns, nil
}

// convertTransaction maps one OFX transaction to the canonical form, or nil
// when the amount is zero (balance markers and memo-only entries).
func convertTransaction(txn ofxgo.Transaction, accountID string) (*domain.Transaction, error) {
	id := txn.FiTID.String()
	if id == "" {
		return nil, fmt.Errorf("transaction missing required FITID field")
	}

	date := txn.DtPosted.Time
	if date.IsZero() {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		return nil, fmt.Errorf("transaction %s missing both posted date and user date", id)
	}

	description := strings.TrimSpace(txn.Name.String())
	if description == "" {
		description = strings.TrimSpace(txn.Memo.String())
	}
	if description == "" {
		return nil, fmt.Errorf("transaction %s missing both name and memo fields", id)
	}

	amount, exact := txn.TrnAmt.Float64()
	if !exact {
		fmt.Fprintf(os.Stderr, "Warning: precision loss in transaction %s amount %v\n", id, txn.TrnAmt)
	}
	if amount == 0 {
		return nil, nil
	}

	txnType := domain.DeriveType(amount)
	if txn.TrnType == ofxgo.TrnTypeXfer {
		txnType = domain.TxnTransfer
	}

	return &domain.Transaction{
		AccountID:   accountID,
		Date:        date.Format("2006-01-02"),
		MerchantRaw: description,
		Amount:      amount,
		Type:        txnType,
		Category:    domain.DefaultCategory,
	}, nil
}

func mapBankAccountType(ofxAcct ofxgo.BankAcct) (domain.AccountType, error) {
	switch ofxAcct.AcctType {
	case ofxgo.AcctTypeChecking:
		return domain.AccountTypeChecking, nil
	case ofxgo.AcctTypeSavings:
		return domain.AccountTypeSavings, nil
	default:
		return "", fmt.Errorf("unsupported OFX account type %v for account %s (supported: CHECKING, SAVINGS)",
			ofxAcct.AcctType, ofxAcct.AcctID.String())
	}
}
