// Package ofx parses OFX/QFX downloads into staged imports. Bank and credit
// card statement responses are supported; investment downloads are routed to
// the delimited and page-oriented paths instead.
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/harmonsoft/stmtstage/internal/dedup"
	"github.com/harmonsoft/stmtstage/internal/domain"
	"github.com/harmonsoft/stmtstage/internal/parser"
	stage "github.com/harmonsoft/stmtstage/internal/transform"
)

// Parser implements OFX/QFX parsing with a stateless design. Each method
// operates solely on the input data provided, making the parser safe for
// concurrent use without locking.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared OFX parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "ofx"
}

// CanParse checks if this parser can handle the file based on extension and header
func (p *Parser) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ofx" && ext != ".qfx" {
		return false
	}

	// Look for OFX header markers (both v1 SGML and v2 XML formats)
	headerUpper := strings.ToUpper(string(header))
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<?OFX") ||
		strings.Contains(headerUpper, "<OFX>")
}

// Parse stages an import from an OFX/QFX stream.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*domain.StagedImport, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content from %s: %w", meta.FilePath(), err)
	}

	// ofxgo.ParseResponse does not support context cancellation, so this
	// check only catches cancellation between file read and parsing.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file %s (%d bytes): %w", meta.FilePath(), len(content), err)
	}

	if len(response.CreditCard) > 0 {
		return p.parseCreditCard(response, meta)
	}
	if len(response.Bank) > 0 {
		return p.parseBank(response, meta)
	}
	if len(response.InvStmt) > 0 {
		return nil, parser.NewParseFailure("OFX investment statements are not supported; export the activity as delimited text instead")
	}

	return nil, parser.NewParseFailure("no supported statement type in OFX file (creditcard: %d, bank: %d)",
		len(response.CreditCard), len(response.Bank))
}

// parseCreditCard stages a credit card statement response.
func (p *Parser) parseCreditCard(resp *ofxgo.Response, meta *parser.Metadata) (*domain.StagedImport, error) {
	ccStmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected credit card statement type %T", resp.CreditCard[0])
	}

	if ccStmt.CCAcctFrom.AcctID.String() == "" {
		return nil, fmt.Errorf("missing account ID in credit card statement")
	}
	if ccStmt.BankTranList == nil {
		return nil, fmt.Errorf("missing transaction list in credit card statement")
	}

	imp, err := p.newImport(resp, meta)
	if err != nil {
		return nil, err
	}
	imp.AccountTypeHint = accountKind(meta, domain.AccountCreditCard)

	if err := p.stageTransactions(ccStmt.BankTranList, imp); err != nil {
		return nil, err
	}

	// Credit card ledger balances arrive positive from some issuers; the
	// liability sign convention forces them negative at construction.
	if amt, _ := ccStmt.BalAmt.Float64(); !ccStmt.DtAsOf.Time.IsZero() {
		b, err := domain.NewStagedBalance(stage.NewID("bal"), ccStmt.DtAsOf.Time.Format("2006-01-02"), amt, imp.AccountTypeHint)
		if err != nil {
			return nil, fmt.Errorf("ledger balance: %w", err)
		}
		imp.Balances = append(imp.Balances, *b)
	}

	return imp, nil
}

// parseBank stages a bank statement response.
func (p *Parser) parseBank(resp *ofxgo.Response, meta *parser.Metadata) (*domain.StagedImport, error) {
	bankStmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected bank statement type %T", resp.Bank[0])
	}

	if bankStmt.BankAcctFrom.AcctID.String() == "" {
		return nil, fmt.Errorf("missing account ID in bank statement")
	}
	if bankStmt.BankTranList == nil {
		return nil, fmt.Errorf("missing transaction list in bank statement")
	}

	kind, err := mapBankAccountKind(bankStmt.BankAcctFrom)
	if err != nil {
		return nil, fmt.Errorf("failed to map account type: %w", err)
	}

	imp, err := p.newImport(resp, meta)
	if err != nil {
		return nil, err
	}
	imp.AccountTypeHint = accountKind(meta, kind)

	if err := p.stageTransactions(bankStmt.BankTranList, imp); err != nil {
		return nil, err
	}

	if amt, _ := bankStmt.BalAmt.Float64(); !bankStmt.DtAsOf.Time.IsZero() {
		b, err := domain.NewStagedBalance(stage.NewID("bal"), bankStmt.DtAsOf.Time.Format("2006-01-02"), amt, imp.AccountTypeHint)
		if err != nil {
			return nil, fmt.Errorf("ledger balance: %w", err)
		}
		imp.Balances = append(imp.Balances, *b)
	}

	return imp, nil
}

// newImport builds the empty staged import, preferring the caller-supplied
// institution over the OFX signon organization.
func (p *Parser) newImport(resp *ofxgo.Response, meta *parser.Metadata) (*domain.StagedImport, error) {
	institution := meta.Institution()
	if institution == "" {
		institution = resp.Signon.Org.String()
	}

	slug := ""
	if institution != "" {
		s, err := stage.SlugifyInstitution(institution)
		if err != nil {
			return nil, err
		}
		slug = s
	}

	imp, err := domain.NewStagedImport(stage.ImportID(slug, filepath.Base(meta.FilePath())), p.Name(), meta.FilePath())
	if err != nil {
		return nil, err
	}
	imp.Institution = institution
	return imp, nil
}

// stageTransactions converts every OFX transaction in the list.
func (p *Parser) stageTransactions(tranList *ofxgo.TransactionList, imp *domain.StagedImport) error {
	for i, txn := range tranList.Transactions {
		staged, err := stageTransaction(txn)
		if err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
		imp.Transactions = append(imp.Transactions, *staged)
	}
	return nil
}

// stageTransaction converts one OFX transaction to a staged transaction.
// OFX downloads carry server-assigned IDs and signed amounts, so records
// stage as included with the FiTID preserved for reconciliation.
func stageTransaction(txn ofxgo.Transaction) (*domain.StagedTransaction, error) {
	externalID := txn.FiTID.String()
	if externalID == "" {
		return nil, fmt.Errorf("transaction missing required ID field")
	}

	// Posted date preferred, user date as fallback.
	date := txn.DtPosted.Time
	if date.IsZero() {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		return nil, fmt.Errorf("transaction %s missing both posted date and user date", externalID)
	}

	payee := strings.TrimSpace(txn.Name.String())
	if payee == "" {
		payee = strings.TrimSpace(txn.Memo.String())
	}
	if payee == "" {
		return nil, fmt.Errorf("transaction %s missing both name and memo fields", externalID)
	}

	// Float64 reports whether the rational is exactly representable. Typical
	// two-decimal amounts always are; inexact amounts still stage since the
	// reviewer sees the rounded value.
	amount, _ := txn.TrnAmt.Float64()

	iso := date.Format("2006-01-02")
	staged, err := domain.NewStagedTransaction(stage.NewID("txn"), iso, payee, amount, mapTransactionKind(txn, amount))
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", externalID, err)
	}
	staged.ExternalID = externalID
	staged.Include = true
	if memo := strings.TrimSpace(txn.Memo.String()); memo != "" && memo != payee {
		staged.Memo = memo
	}
	staged.HashKey = dedup.HashKey(iso, amount, payee, staged.Memo, staged.Symbol, staged.Quantity)
	return staged, nil
}

// mapBankAccountKind maps the OFX account type to the staging account kind.
func mapBankAccountKind(ofxAcct ofxgo.BankAcct) (domain.AccountKind, error) {
	switch ofxAcct.AcctType {
	case ofxgo.AcctTypeChecking, ofxgo.AcctTypeMoneyMrkt:
		return domain.AccountChecking, nil
	case ofxgo.AcctTypeSavings:
		return domain.AccountSavings, nil
	case ofxgo.AcctTypeCreditLine:
		return domain.AccountLoan, nil
	default:
		return domain.AccountUnknown, fmt.Errorf("unknown OFX account type %v for account %s", ofxAcct.AcctType, ofxAcct.AcctID.String())
	}
}

// mapTransactionKind maps the OFX transaction type to the staging kind,
// falling back to the amount sign for generic types.
func mapTransactionKind(txn ofxgo.Transaction, amount float64) domain.TransactionKind {
	switch txn.TrnType {
	case ofxgo.TrnTypeXfer:
		return domain.KindTransfer
	case ofxgo.TrnTypeFee, ofxgo.TrnTypeSrvChg:
		return domain.KindFee
	case ofxgo.TrnTypeInt:
		return domain.KindInterest
	case ofxgo.TrnTypeDep, ofxgo.TrnTypeDirectDep:
		return domain.KindDeposit
	case ofxgo.TrnTypeCheck, ofxgo.TrnTypeATM, ofxgo.TrnTypePOS, ofxgo.TrnTypePayment:
		return domain.KindWithdrawal
	case ofxgo.TrnTypeDiv:
		return domain.KindDividend
	default:
		if amount < 0 {
			return domain.KindWithdrawal
		}
		if amount > 0 {
			return domain.KindDeposit
		}
		return domain.KindBank
	}
}

// accountKind resolves the effective account kind: caller override first.
func accountKind(meta *parser.Metadata, detected domain.AccountKind) domain.AccountKind {
	if hint := meta.AccountHint(); hint != "" {
		return hint
	}
	return detected
}
