package patterns

import (
	"testing"
)

func TestStartsWithDate(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"01/05 DIRECT DEPOSIT", true},
		{"1/5 DIRECT DEPOSIT", true},
		{"01/05/2026 DIRECT DEPOSIT", true},
		{"01-05-26 DIRECT DEPOSIT", true},
		{"Jan 5 DIRECT DEPOSIT", true},
		{"January 5, 2026 DIRECT DEPOSIT", true},
		{"  01/05 padded", true},
		{"DIRECT DEPOSIT 01/05", false},
		{"Totals for period", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := StartsWithDate(tt.line); got != tt.want {
			t.Errorf("StartsWithDate(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestFindMoney(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"01/05 DEPOSIT 2,500.00 3,945.77", []string{"2,500.00", "3,945.77"}},
		{"PAYROLL DEPOSIT 2500.00", []string{"2500.00"}},
		{"WIRE IN 1234567.89", []string{"1234567.89"}},
		{"MIXED 2500.00 3,945.77", []string{"2500.00", "3,945.77"}},
		{"FEE $35.00", []string{"$35.00"}},
		{"CREDIT (950.00)", []string{"(950.00)"}},
		{"TRAILING 60.00-", []string{"60.00-"}},
		{"SUFFIX 60.00 CR", []string{"60.00 CR"}},
		{"no amounts here", nil},
		{"not money 1234", nil},
	}
	for _, tt := range tests {
		got := FindMoney(tt.line)
		if len(got) != len(tt.want) {
			t.Errorf("FindMoney(%q) = %v, want %v", tt.line, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("FindMoney(%q)[%d] = %q, want %q", tt.line, i, got[i], tt.want[i])
			}
		}
	}
}

func TestIsMoneyOnly(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"2,500.00", true},
		{"2500.00", true},
		{"1250.00", true},
		{"$12500.00", true},
		{"(4500.00)", true},
		{"$2,500.00", true},
		{"(950.00)", true},
		{"-60.00", true},
		{"  1,234.56  ", true},
		{"60.00 DR", true},
		{"2,500.00 balance", false},
		{"deposit 2,500.00", false},
		{"1234", false},
	}
	for _, tt := range tests {
		if got := IsMoneyOnly(tt.line); got != tt.want {
			t.Errorf("IsMoneyOnly(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestIsNoise(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"Page 3", true},
		{"Page 3 of 12", true},
		{"- 3 -", true},
		{"This page intentionally left blank", true},
		{"Member FDIC", true},
		{"Continued on next page", true},
		{"* See reverse for details", true},
		{"01/05 DIRECT DEPOSIT 2,500.00", false},
		{"Ending Balance 3,945.77", false},
	}
	for _, tt := range tests {
		if got := IsNoise(tt.line); got != tt.want {
			t.Errorf("IsNoise(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestSplitRange(t *testing.T) {
	tests := []struct {
		line      string
		wantLeft  string
		wantRight string
		wantOK    bool
	}{
		{"01/01/2026 through 01/31/2026", "01/01/2026", "01/31/2026", true},
		{"January 1, 2026 to January 31, 2026", "January 1, 2026", "January 31, 2026", true},
		{"01/01/2026 - 01/31/2026", "01/01/2026", "01/31/2026", true},
		{"12/01/2025 thru 12/31/2025", "12/01/2025", "12/31/2025", true},
		{"no dates through here", "", "", false},
		{"just one date 01/01/2026", "", "", false},
	}
	for _, tt := range tests {
		left, right, ok := SplitRange(tt.line)
		if ok != tt.wantOK {
			t.Errorf("SplitRange(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			continue
		}
		if left != tt.wantLeft || right != tt.wantRight {
			t.Errorf("SplitRange(%q) = %q, %q; want %q, %q", tt.line, left, right, tt.wantLeft, tt.wantRight)
		}
	}
}

func TestContainsPhrase(t *testing.T) {
	tests := []struct {
		line    string
		phrases []string
		want    bool
	}{
		{"Ending Balance 3,945.77", []string{"ending balance"}, true},
		{"Ending    Balance", []string{"ending balance"}, true},
		{"New Balance", []string{"ending balance", "new balance"}, true},
		{"Beginning Balance", []string{"ending balance"}, false},
		{"ENDING BALANCE", []string{"ending balance"}, true},
	}
	for _, tt := range tests {
		if got := ContainsPhrase(tt.line, tt.phrases...); got != tt.want {
			t.Errorf("ContainsPhrase(%q, %v) = %v, want %v", tt.line, tt.phrases, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"Annual Percentage Rate 24.99%", "24.99"},
		{"APR: 5 %", "5"},
		{"no rate here", ""},
	}
	for _, tt := range tests {
		m := Percent.FindStringSubmatch(tt.line)
		got := ""
		if m != nil {
			got = m[1]
		}
		if got != tt.want {
			t.Errorf("Percent on %q = %q, want %q", tt.line, got, tt.want)
		}
	}
}
