package identifier

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrscan/pkg/domain"
)

func TestExtractWithRule(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantDNI  domain.DNI
		wantRule Rule
	}{
		{name: "attendance json string dni", payload: `{"type":"attendance","dni":"12345678"}`, wantDNI: "12345678", wantRule: RuleAttendanceJSON},
		{name: "asistencia json numeric dni", payload: `{"tipo":"asistencia","dni":72345678}`, wantDNI: "72345678", wantRule: RuleAttendanceJSON},
		{name: "attendance json upper DNI field", payload: `{"tipo":"asistencia","DNI":"1234567890"}`, wantDNI: "1234567890", wantRule: RuleAttendanceJSON},
		{name: "attendance json id field", payload: `{"type":"Attendance","id":"87654321"}`, wantDNI: "87654321", wantRule: RuleAttendanceJSON},
		{name: "attendance json beats earlier digit run", payload: `{"note":"call 99999999","type":"attendance","dni":"12345678"}`, wantDNI: "12345678", wantRule: RuleAttendanceJSON},
		{name: "untagged json falls through to digit run", payload: `{"type":"badge","code":"12345678"}`, wantDNI: "12345678", wantRule: RuleDigitRun},
		{name: "attendance json invalid dni falls through", payload: `{"type":"attendance","dni":"123","ref":"23456789"}`, wantDNI: "23456789", wantRule: RuleDigitRun},
		{name: "profile student url", payload: "https://host/profile-student/12345678", wantDNI: "12345678", wantRule: RuleProfileURL},
		{name: "student url with query", payload: "https://host/student/123456789?ref=55555555", wantDNI: "123456789", wantRule: RuleProfileURL},
		{name: "perfil estudiante url", payload: "https://escuela.pe/perfil-estudiante/45678912/", wantDNI: "45678912", wantRule: RuleProfileURL},
		{name: "estudiante url", payload: "http://localhost:3000/estudiante/45678912", wantDNI: "45678912", wantRule: RuleProfileURL},
		{name: "url digit run too long", payload: "https://host/student/12345678901", wantRule: ""},
		{name: "dni equals", payload: "dni=12345678", wantDNI: "12345678", wantRule: RuleKeyValue},
		{name: "id colon", payload: "id:12345678", wantDNI: "12345678", wantRule: RuleKeyValue},
		{name: "key value in query string", payload: "https://host/check?room=101&DNI=12345678", wantDNI: "12345678", wantRule: RuleKeyValue},
		{name: "key value beats earlier digit run", payload: "ticket 11111111 dni: 22222222", wantDNI: "22222222", wantRule: RuleKeyValue},
		{name: "plain eight digits", payload: "12345678", wantDNI: "12345678", wantRule: RulePlainDigits},
		{name: "plain ten digits", payload: "1234567890", wantDNI: "1234567890", wantRule: RulePlainDigits},
		{name: "plain digits with whitespace", payload: " 12345678\n", wantDNI: "12345678", wantRule: RulePlainDigits},
		{name: "digit run in text", payload: "Alumno 12345678 - 5to B", wantDNI: "12345678", wantRule: RuleDigitRun},
		{name: "first standalone run wins", payload: "code 123456789012 then 87654321 and 11111111", wantDNI: "87654321", wantRule: RuleDigitRun},
		{name: "seven digits", payload: "1234567", wantRule: ""},
		{name: "eleven digits", payload: "12345678901", wantRule: ""},
		{name: "free text", payload: "no qr here", wantRule: ""},
		{name: "empty", payload: "", wantRule: ""},
		{name: "malformed json without digits", payload: `{"type":"attendance",`, wantRule: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dni, rule, err := ExtractWithRule(tt.payload)
			if tt.wantRule == "" {
				require.ErrorIs(t, err, ErrUnrecognized)
				assert.Empty(t, dni)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDNI, dni)
			assert.Equal(t, tt.wantRule, rule)
			assert.True(t, dni.IsValid())
		})
	}
}

func TestExtract_PlainDigitsReturnedUnchanged(t *testing.T) {
	for n := domain.DNIMinDigits; n <= domain.DNIMaxDigits; n++ {
		for _, seed := range []int64{0, 1, 42, 98765, 1234567} {
			payload := fmt.Sprintf("%0*d", n, seed)
			got, err := Extract(payload)
			require.NoError(t, err, payload)
			assert.Equal(t, domain.DNI(payload), got)
		}
	}
}

func TestExtract_AttendanceJSONTakesPriority(t *testing.T) {
	for _, d := range []string{"12345678", "123456789", "1234567890"} {
		payload := fmt.Sprintf(`{"extra":"55555555","type":"attendance","dni":"%s"}`, d)
		got, err := New().Extract(payload)
		require.NoError(t, err)
		assert.Equal(t, domain.DNI(d), got)
	}
}

func FuzzExtract(f *testing.F) {
	f.Add("12345678")
	f.Add(`{"tipo":"asistencia","dni":"12345678"}`)
	f.Add("https://host/profile-student/12345678")
	f.Add("dni=12345678")
	f.Add("no qr here")

	f.Fuzz(func(t *testing.T, payload string) {
		dni, err := Extract(payload)
		if err != nil {
			require.ErrorIs(t, err, ErrUnrecognized)
			return
		}
		require.True(t, dni.IsValid(), "extracted %q from %q", dni, payload)
	})
}
